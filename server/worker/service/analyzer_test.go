package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"langmod/server/backend/domain"
	"langmod/server/common/infra/cache"
)

type fakeDetector struct {
	scores []domain.LanguageScore
	err    error
}

func (f *fakeDetector) DetectLanguages(string) ([]domain.LanguageScore, error) {
	return f.scores, f.err
}

type fakePublisher struct {
	queue string
	body  []byte
	calls int
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, queue string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.queue, f.body = queue, body
	f.calls++
	return nil
}

type fakeJobs struct {
	statuses map[string]cache.JobStatus
}

func (f *fakeJobs) Set(_ context.Context, jobID string, status cache.JobStatus) error {
	if f.statuses == nil {
		f.statuses = map[string]cache.JobStatus{}
	}
	f.statuses[jobID] = status
	return nil
}

func jobBody(t *testing.T, jobID string, payload any) []byte {
	t.Helper()
	env, err := domain.NewEnvelope(jobID, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func analyzeJob(t *testing.T) []byte {
	return jobBody(t, "job-1", domain.TextToAnalyzePayload{
		MessageType: domain.MsgTextToAnalyze,
		UserID:      42,
		Name:        "alice",
		ChatMessage: domain.ChatMessage{
			ChatID:    "c1",
			MessageID: "m1",
			Content:   "привіт світ",
			Timestamp: "2025-06-01T10:00:00",
		},
	})
}

func TestHandleJobPublishesResult(t *testing.T) {
	detector := &fakeDetector{scores: []domain.LanguageScore{{Lang: "uk", Prob: 0.97}}}
	pub := &fakePublisher{}
	jobs := &fakeJobs{}
	analyzer := NewAnalyzer(detector, pub, jobs, "result")

	if err := analyzer.HandleJob(context.Background(), analyzeJob(t)); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if pub.calls != 1 || pub.queue != "result" {
		t.Fatalf("want one result publish, got %d on %q", pub.calls, pub.queue)
	}

	var env domain.Envelope
	if err := json.Unmarshal(pub.body, &env); err != nil {
		t.Fatalf("decode result envelope: %v", err)
	}
	if env.JobID != "job-1" {
		t.Errorf("job id must survive the hop, got %q", env.JobID)
	}
	var completed domain.TextAnalysisCompletedPayload
	if err := env.DecodePayload(&completed); err != nil {
		t.Fatalf("decode result payload: %v", err)
	}
	if completed.MessageType != domain.MsgTextAnalysisCompleted {
		t.Errorf("message type = %q", completed.MessageType)
	}
	if completed.ChatID != "c1" || completed.Text != "привіт світ" || len(completed.AnalysisResult) != 1 {
		t.Errorf("bad result payload %+v", completed)
	}

	status := jobs.statuses["job-1"]
	if status.State != cache.JobCompleted || status.Result == nil {
		t.Errorf("job must be marked completed, got %+v", status)
	}
}

func TestHandleJobDropsOnDetectorError(t *testing.T) {
	detector := &fakeDetector{err: ErrNoLinguisticFeatures}
	pub := &fakePublisher{}
	jobs := &fakeJobs{}
	analyzer := NewAnalyzer(detector, pub, jobs, "result")

	if err := analyzer.HandleJob(context.Background(), analyzeJob(t)); err != nil {
		t.Fatalf("detector failures must ack and drop, got %v", err)
	}
	if pub.calls != 0 {
		t.Errorf("no result may be published for a failed analysis")
	}
	if status := jobs.statuses["job-1"]; status.State != cache.JobFailed || status.Error == "" {
		t.Errorf("job must be marked failed, got %+v", status)
	}
}

func TestHandleJobPropagatesPublishFailure(t *testing.T) {
	detector := &fakeDetector{scores: []domain.LanguageScore{{Lang: "en", Prob: 0.9}}}
	pub := &fakePublisher{err: errors.New("broker down")}
	analyzer := NewAnalyzer(detector, pub, &fakeJobs{}, "result")

	if err := analyzer.HandleJob(context.Background(), analyzeJob(t)); err == nil {
		t.Fatalf("result publish failure must propagate for redelivery")
	}
}

func TestHandleJobDropsForeignTypes(t *testing.T) {
	pub := &fakePublisher{}
	analyzer := NewAnalyzer(&fakeDetector{}, pub, &fakeJobs{}, "result")

	body := jobBody(t, "job-2", domain.ReportCommandPayload{MessageType: domain.MsgChatStatsCommand})
	if err := analyzer.HandleJob(context.Background(), body); err != nil {
		t.Fatalf("foreign types must ack, got %v", err)
	}
	if pub.calls != 0 {
		t.Errorf("nothing may be published for foreign types")
	}
}

func TestHandleJobDropsMalformedBody(t *testing.T) {
	analyzer := NewAnalyzer(&fakeDetector{}, &fakePublisher{}, &fakeJobs{}, "result")
	if err := analyzer.HandleJob(context.Background(), []byte("{broken")); err != nil {
		t.Fatalf("malformed bodies must ack, got %v", err)
	}
}
