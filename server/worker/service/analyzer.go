package service

import (
	"context"
	"encoding/json"
	"fmt"

	"langmod/server/backend/domain"
	"langmod/server/common/infra/cache"
	"langmod/server/common/log"
)

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// JobStatusWriter records per-job progress for the direct analysis
// API's polling endpoint.
type JobStatusWriter interface {
	Set(ctx context.Context, jobID string, status cache.JobStatus) error
}

// Analyzer consumes the worker queue: it detects the languages of one
// message and publishes the completed analysis to the result queue. A
// detection failure drops the job after marking it failed, leaving the
// source message permanently unanalyzed.
type Analyzer struct {
	detector    Detector
	pub         Publisher
	jobs        JobStatusWriter
	resultQueue string
}

func NewAnalyzer(detector Detector, pub Publisher, jobs JobStatusWriter, resultQueue string) *Analyzer {
	return &Analyzer{detector: detector, pub: pub, jobs: jobs, resultQueue: resultQueue}
}

// HandleJob processes one worker-queue delivery. A nil return acks the
// message; only result-publish failures propagate for redelivery.
func (a *Analyzer) HandleJob(ctx context.Context, body []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Errorf("malformed envelope on worker queue, dropping: %v", err)
		return nil
	}
	msgType, err := env.MessageType()
	if err != nil {
		log.Errorf("job %s: envelope without message_type, dropping: %v", env.JobID, err)
		return nil
	}
	if msgType != domain.MsgTextToAnalyze {
		log.Warnf("job %s: unroutable worker-queue message type %q, dropping", env.JobID, msgType)
		return nil
	}
	var payload domain.TextToAnalyzePayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Errorf("job %s: malformed %s payload: %v", env.JobID, msgType, err)
		return nil
	}

	scores, err := a.detector.DetectLanguages(payload.ChatMessage.Content)
	if err != nil {
		log.Errorf("job %s: analyze message %s/%s: %v",
			env.JobID, payload.ChatMessage.ChatID, payload.ChatMessage.MessageID, err)
		a.setStatus(ctx, env.JobID, cache.JobStatus{State: cache.JobFailed, Error: err.Error()})
		return nil
	}

	completed := domain.TextAnalysisCompletedPayload{
		MessageType:    domain.MsgTextAnalysisCompleted,
		UserID:         payload.UserID,
		Name:           payload.Name,
		Username:       payload.Username,
		ChatID:         payload.ChatMessage.ChatID,
		MessageID:      payload.ChatMessage.MessageID,
		Text:           payload.ChatMessage.Content,
		Timestamp:      payload.ChatMessage.Timestamp,
		AnalysisResult: scores,
	}
	resultEnv, err := domain.NewEnvelope(env.JobID, completed)
	if err != nil {
		return err
	}
	resultBody, err := json.Marshal(resultEnv)
	if err != nil {
		return fmt.Errorf("marshal result envelope: %w", err)
	}
	if err := a.pub.Publish(ctx, a.resultQueue, resultBody); err != nil {
		return fmt.Errorf("publish result for job %s: %w", env.JobID, err)
	}

	analysis, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	a.setStatus(ctx, env.JobID, cache.JobStatus{State: cache.JobCompleted, Result: analysis})
	return nil
}

// setStatus is best-effort: the queue pipeline never reads job status,
// only the polling API does.
func (a *Analyzer) setStatus(ctx context.Context, jobID string, status cache.JobStatus) {
	if err := a.jobs.Set(ctx, jobID, status); err != nil {
		log.Errorf("set status for job %s: %v", jobID, err)
	}
}
