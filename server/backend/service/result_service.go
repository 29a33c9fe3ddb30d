package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"langmod/server/backend/domain"
	"langmod/server/backend/moderation"
	"langmod/server/common/log"
	"langmod/server/store"
)

// ResultService persists completed analyses and runs the moderation
// pass. Store failures propagate so the broker redelivers; the broker
// enforces no idempotency key, so a redelivered result can apply its
// side effects twice.
type ResultService struct {
	store             store.Store
	engine            *moderation.Engine
	pub               Publisher
	notificationQueue string
	now               func() time.Time
}

func NewResultService(st store.Store, engine *moderation.Engine, pub Publisher, notificationQueue string) *ResultService {
	return &ResultService{
		store:             st,
		engine:            engine,
		pub:               pub,
		notificationQueue: notificationQueue,
		now:               time.Now,
	}
}

func (s *ResultService) HandleAnalysisCompleted(ctx context.Context, jobID string, payload domain.TextAnalysisCompletedPayload) error {
	exists, err := s.store.UserExists(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("check user %d: %w", payload.UserID, err)
	}
	if !exists {
		user := domain.User{
			UserID:   payload.UserID,
			Name:     payload.Name,
			Username: payload.Username,
			IsActive: true,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user %d: %w", payload.UserID, err)
		}
	}

	// The message was usually recorded at ingest without analysis;
	// attach the result to it. Messages analyzed through the direct
	// API path were never recorded, so fall back to a full insert.
	attached, err := s.store.AttachAnalysis(ctx, payload.ChatID, payload.MessageID, payload.AnalysisResult)
	if err != nil {
		return fmt.Errorf("attach analysis %s/%s: %w", payload.ChatID, payload.MessageID, err)
	}
	if !attached {
		msg := domain.ChatMessage{
			ChatID:         payload.ChatID,
			MessageID:      payload.MessageID,
			Content:        payload.Text,
			Timestamp:      payload.Timestamp,
			AnalysisResult: payload.AnalysisResult,
		}
		if err := s.store.AppendChatMessage(ctx, payload.UserID, msg); err != nil {
			return fmt.Errorf("append message %s/%s: %w", payload.ChatID, payload.MessageID, err)
		}
	}

	return s.moderate(ctx, jobID, payload)
}

func (s *ResultService) moderate(ctx context.Context, jobID string, payload domain.TextAnalysisCompletedPayload) error {
	chat, err := s.store.GetChat(ctx, payload.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debugf("chat %s has no settings, skipping moderation", payload.ChatID)
			return nil
		}
		return fmt.Errorf("load chat %s: %w", payload.ChatID, err)
	}

	verdicts := s.engine.Evaluate(ctx, payload.UserID, payload.ChatID, payload.AnalysisResult, chat.ChatSettings)
	for _, verdict := range verdicts {
		if err := s.applyVerdict(ctx, jobID, payload, verdict); err != nil {
			return err
		}
	}
	return nil
}

func (s *ResultService) applyVerdict(ctx context.Context, jobID string, payload domain.TextAnalysisCompletedPayload, verdict moderation.Verdict) error {
	restriction := verdict.Rule.Restriction
	record := domain.RestrictionRecord{
		UserID:          payload.UserID,
		ChatID:          payload.ChatID,
		MessageID:       payload.MessageID,
		MessageText:     payload.Text,
		RestrictionType: restriction.RestrictionType,
		RuleIndex:       verdict.RuleIndex,
		Timestamp:       s.now(),
		DurationSeconds: restriction.DurationSeconds,
	}
	if err := s.store.AppendRestriction(ctx, record); err != nil {
		return fmt.Errorf("append restriction for user %d: %w", payload.UserID, err)
	}

	// The record is persisted; notification failures only get logged so
	// the restriction sticks even when nobody is told about it.
	admin := domain.AdminNotificationPayload{
		MessageType: domain.MsgAdminNotification,
		ChatID:      payload.ChatID,
		Text: fmt.Sprintf("Rule %q restricted user %d (%s): %s",
			verdict.Rule.Name, payload.UserID, restriction.RestrictionType, verdict.Rule.Message),
	}
	if err := publishEnvelope(ctx, s.pub, s.notificationQueue, jobID, admin); err != nil {
		log.Errorf("publish admin notification for job %s: %v", jobID, err)
	}

	if verdict.Rule.NotifyUser {
		user := domain.UserNotificationPayload{
			MessageType: domain.MsgUserNotification,
			UserID:      payload.UserID,
			Text:        verdict.Rule.Message,
		}
		if err := publishEnvelope(ctx, s.pub, s.notificationQueue, jobID, user); err != nil {
			log.Errorf("publish user notification for job %s: %v", jobID, err)
		}
	}

	if requiresTransportAction(restriction.RestrictionType) {
		action := domain.ModerationActionPayload{
			MessageType:     domain.MsgModerationAction,
			UserID:          payload.UserID,
			ChatID:          payload.ChatID,
			MessageID:       payload.MessageID,
			ActionType:      restriction.RestrictionType,
			DurationSeconds: restriction.DurationSeconds,
		}
		if err := publishEnvelope(ctx, s.pub, s.notificationQueue, jobID, action); err != nil {
			log.Errorf("publish moderation action for job %s: %v", jobID, err)
		}
	}
	return nil
}

// requiresTransportAction reports whether a restriction needs the bot
// transport to act; warnings are text-only.
func requiresTransportAction(t domain.RestrictionType) bool {
	switch t {
	case domain.RestrictionTimeout, domain.RestrictionTemporaryBan, domain.RestrictionPermanentBan:
		return true
	}
	return false
}
