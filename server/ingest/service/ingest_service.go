package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"langmod/server/backend/domain"
	"langmod/server/common/infra/cache"
	"langmod/server/common/log"
	"langmod/server/store"
)

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// JobTracker covers the Redis job-status store used by the polling
// endpoint.
type JobTracker interface {
	Set(ctx context.Context, jobID string, status cache.JobStatus) error
	Get(ctx context.Context, jobID string) (cache.JobStatus, error)
}

// InboundMessage is one chat message arriving from the bot transport
// webhook.
type InboundMessage struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ChatID    string `json:"chat_id"`
	ChatName  string `json:"chat_name"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// IngestService is the pipeline's front door: it records every inbound
// message, applies the admission policy, and enqueues analysis jobs
// and report commands on the general queue.
type IngestService struct {
	store        store.Store
	policy       *AdmissionPolicy
	pub          Publisher
	jobs         JobTracker
	generalQueue string
}

func NewIngestService(st store.Store, policy *AdmissionPolicy, pub Publisher, jobs JobTracker, generalQueue string) *IngestService {
	return &IngestService{store: st, policy: policy, pub: pub, jobs: jobs, generalQueue: generalQueue}
}

// HandleInbound records one webhook message and, when the admission
// policy admits it, enqueues an analysis job. Messages refused by the
// policy stay recorded without an analysis result.
func (s *IngestService) HandleInbound(ctx context.Context, msg InboundMessage) (jobID string, admitted bool, err error) {
	settings, err := s.ensureChat(ctx, msg.ChatID, msg.ChatName)
	if err != nil {
		return "", false, err
	}
	if err := s.ensureUser(ctx, msg); err != nil {
		return "", false, err
	}

	record := domain.ChatMessage{
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if err := s.store.AppendChatMessage(ctx, msg.UserID, record); err != nil {
		return "", false, fmt.Errorf("append message %s/%s: %w", msg.ChatID, msg.MessageID, err)
	}

	prior, err := s.store.CountAnalyzedMessages(ctx, msg.UserID, msg.ChatID)
	if err != nil {
		return "", false, fmt.Errorf("count analyzed messages for user %d: %w", msg.UserID, err)
	}
	if !s.policy.ShouldAnalyze(settings, prior, msg.Content) {
		return "", false, nil
	}

	jobID, err = s.enqueueAnalysis(ctx, msg)
	if err != nil {
		return "", false, err
	}
	return jobID, true, nil
}

// SubmitAnalysis enqueues a direct analysis job, bypassing admission.
// The message was never recorded at ingest; the result handler inserts
// it once the analysis lands.
func (s *IngestService) SubmitAnalysis(ctx context.Context, msg InboundMessage) (string, error) {
	return s.enqueueAnalysis(ctx, msg)
}

// SubmitCommand enqueues one report command and returns its job id.
func (s *IngestService) SubmitCommand(ctx context.Context, cmd domain.ReportCommandPayload) (string, error) {
	if _, ok := domain.AnswerTypeFor(cmd.MessageType); !ok {
		return "", fmt.Errorf("unknown report command %q", cmd.MessageType)
	}
	jobID := uuid.NewString()
	if err := s.publishEnvelope(ctx, jobID, cmd); err != nil {
		return "", err
	}
	return jobID, nil
}

// JobStatus reports the state of a submitted analysis job.
func (s *IngestService) JobStatus(ctx context.Context, jobID string) (cache.JobStatus, error) {
	return s.jobs.Get(ctx, jobID)
}

// UpdateChatSettings replaces a chat's moderation settings after
// validating them.
func (s *IngestService) UpdateChatSettings(ctx context.Context, chatID string, settings domain.ChatSettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.store.UpdateChatSettings(ctx, chatID, settings)
}

func validateSettings(settings domain.ChatSettings) error {
	if settings.AnalysisFrequency < 0.05 || settings.AnalysisFrequency > 1.0 {
		return fmt.Errorf("analysis_frequency %v outside [0.05, 1.0]", settings.AnalysisFrequency)
	}
	if settings.MinMessageLengthForAnalysis < 0 ||
		settings.MaxMessageLengthForAnalysis < settings.MinMessageLengthForAnalysis {
		return fmt.Errorf("message length bounds [%d, %d] are invalid",
			settings.MinMessageLengthForAnalysis, settings.MaxMessageLengthForAnalysis)
	}
	if settings.NewMembersMinAnalyzed < 0 {
		return fmt.Errorf("new_members_min_analyzed %d is negative", settings.NewMembersMinAnalyzed)
	}
	return nil
}

func (s *IngestService) enqueueAnalysis(ctx context.Context, msg InboundMessage) (string, error) {
	jobID := uuid.NewString()
	payload := domain.TextToAnalyzePayload{
		MessageType: domain.MsgTextToAnalyze,
		UserID:      msg.UserID,
		Name:        msg.Name,
		Username:    msg.Username,
		ChatMessage: domain.ChatMessage{
			ChatID:    msg.ChatID,
			MessageID: msg.MessageID,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		},
	}
	if err := s.publishEnvelope(ctx, jobID, payload); err != nil {
		return "", err
	}
	if err := s.jobs.Set(ctx, jobID, cache.JobStatus{State: cache.JobPending}); err != nil {
		log.Errorf("mark job %s pending: %v", jobID, err)
	}
	return jobID, nil
}

func (s *IngestService) publishEnvelope(ctx context.Context, jobID string, payload any) error {
	env, err := domain.NewEnvelope(jobID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.pub.Publish(ctx, s.generalQueue, body); err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return nil
}

// ensureChat loads the chat's settings, creating the chat with
// defaults on first contact and refreshing its display name.
func (s *IngestService) ensureChat(ctx context.Context, chatID, chatName string) (domain.ChatSettings, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		chat = domain.Chat{
			ChatID:        chatID,
			LastKnownName: chatName,
			ChatSettings:  domain.DefaultChatSettings(),
		}
		if err := s.store.CreateChat(ctx, chat); err != nil {
			return domain.ChatSettings{}, fmt.Errorf("create chat %s: %w", chatID, err)
		}
		return chat.ChatSettings, nil
	}
	if err != nil {
		return domain.ChatSettings{}, fmt.Errorf("load chat %s: %w", chatID, err)
	}
	if chatName != "" && chatName != chat.LastKnownName {
		if err := s.store.UpdateChatName(ctx, chatID, chatName); err != nil {
			log.Warnf("update chat %s name: %v", chatID, err)
		}
	}
	return chat.ChatSettings, nil
}

func (s *IngestService) ensureUser(ctx context.Context, msg InboundMessage) error {
	exists, err := s.store.UserExists(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("check user %d: %w", msg.UserID, err)
	}
	if exists {
		return nil
	}
	user := domain.User{
		UserID:   msg.UserID,
		Name:     msg.Name,
		Username: msg.Username,
		IsActive: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user %d: %w", msg.UserID, err)
	}
	return nil
}
