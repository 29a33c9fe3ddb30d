package service

import (
	"context"

	"langmod/server/backend/domain"
	"langmod/server/common/log"
)

// AnalyzeService forwards inbound text jobs to the worker queue. The
// envelope keeps its job id across the hop so the eventual result can
// be correlated with the original request.
type AnalyzeService struct {
	pub         Publisher
	workerQueue string
}

func NewAnalyzeService(pub Publisher, workerQueue string) *AnalyzeService {
	return &AnalyzeService{pub: pub, workerQueue: workerQueue}
}

func (s *AnalyzeService) ForwardToWorker(ctx context.Context, jobID string, payload domain.TextToAnalyzePayload) error {
	log.Debugf("forwarding job %s to worker queue (chat %s, message %s)",
		jobID, payload.ChatMessage.ChatID, payload.ChatMessage.MessageID)
	return publishEnvelope(ctx, s.pub, s.workerQueue, jobID, payload)
}
