package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

var ErrJobNotFound = errors.New("job not found")

type JobStatus struct {
	State  JobState        `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// JobStore keeps per-job analysis status in Redis so callers of the
// direct analysis API can poll for results. Entries expire; the queue
// pipeline itself never reads them.
type JobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJobStore(client *redis.Client, ttl time.Duration) *JobStore {
	return &JobStore{client: client, ttl: ttl}
}

func jobKey(jobID string) string {
	return "analysis:job:" + jobID
}

func (s *JobStore) Set(ctx context.Context, jobID string, status JobStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	return s.client.Set(ctx, jobKey(jobID), body, s.ttl).Err()
}

func (s *JobStore) Get(ctx context.Context, jobID string) (JobStatus, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return JobStatus{}, ErrJobNotFound
	}
	if err != nil {
		return JobStatus{}, err
	}
	var status JobStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return JobStatus{}, fmt.Errorf("decode job status: %w", err)
	}
	return status, nil
}
