package service

import (
	"context"
	"encoding/json"
	"time"

	"langmod/server/backend/domain"
	"langmod/server/common/log"
)

// Dispatcher consumes the notification queue and delivers every
// outbound message through the bot transport. Delivery failures are
// logged and the message dropped: redelivering a report or a warning
// minutes later is worse than losing it.
type Dispatcher struct {
	transport Transport
	hub       *Hub
	now       func() time.Time
}

func NewDispatcher(transport Transport, hub *Hub) *Dispatcher {
	return &Dispatcher{transport: transport, hub: hub, now: time.Now}
}

// Handle is the notification-queue consumer callback.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Errorf("decode notification envelope: %v", err)
		return nil
	}
	msgType, err := env.MessageType()
	if err != nil {
		log.Errorf("job %s: decode message_type: %v", env.JobID, err)
		return nil
	}

	switch msgType {
	case domain.MsgMyChatStatsAnswer, domain.MsgMyGlobalStatsAnswer,
		domain.MsgChatStatsAnswer, domain.MsgGlobalStatsAnswer,
		domain.MsgChatTopAnswer, domain.MsgGlobalTopAnswer,
		domain.MsgChatGlobalTopAnswer, domain.MsgMyChatRankingAnswer,
		domain.MsgMyGlobalRankingAnswer, domain.MsgGlobalChatRankingAnswer:
		d.deliverAnswer(ctx, env)
	case domain.MsgAdminNotification:
		d.deliverAdminNotification(ctx, env)
	case domain.MsgUserNotification:
		d.deliverUserNotification(ctx, env)
	case domain.MsgModerationAction:
		d.applyModerationAction(ctx, env)
	default:
		log.Warnf("job %s: unexpected message type %q on notification queue, dropping", env.JobID, msgType)
	}
	return nil
}

// deliverAnswer sends a formatted report back to where the command came
// from: the chat when one is set, the user's direct chat otherwise.
func (d *Dispatcher) deliverAnswer(ctx context.Context, env domain.Envelope) {
	var payload domain.ReportAnswerPayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Errorf("job %s: decode report answer: %v", env.JobID, err)
		return
	}
	var err error
	if payload.ChatID != "" {
		err = d.transport.SendChatMessage(ctx, payload.ChatID, payload.Text, payload.Filters)
	} else {
		err = d.transport.SendUserMessage(ctx, payload.UserID, payload.Text)
	}
	if err != nil {
		log.Errorf("job %s: deliver %s: %v", env.JobID, payload.MessageType, err)
	}
}

func (d *Dispatcher) deliverAdminNotification(ctx context.Context, env domain.Envelope) {
	var payload domain.AdminNotificationPayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Errorf("job %s: decode admin notification: %v", env.JobID, err)
		return
	}
	if err := d.transport.SendChatMessage(ctx, payload.ChatID, payload.Text, nil); err != nil {
		log.Errorf("job %s: deliver admin notification to chat %s: %v", env.JobID, payload.ChatID, err)
	}
	d.hub.Broadcast(ModerationEvent{
		Kind:       "admin_notification",
		ChatID:     payload.ChatID,
		Text:       payload.Text,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) deliverUserNotification(ctx context.Context, env domain.Envelope) {
	var payload domain.UserNotificationPayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Errorf("job %s: decode user notification: %v", env.JobID, err)
		return
	}
	if err := d.transport.SendUserMessage(ctx, payload.UserID, payload.Text); err != nil {
		log.Errorf("job %s: deliver user notification to %d: %v", env.JobID, payload.UserID, err)
	}
}

func (d *Dispatcher) applyModerationAction(ctx context.Context, env domain.Envelope) {
	var payload domain.ModerationActionPayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Errorf("job %s: decode moderation action: %v", env.JobID, err)
		return
	}

	var err error
	switch payload.ActionType {
	case domain.RestrictionTimeout:
		until := d.now().Add(time.Duration(payload.DurationSeconds) * time.Second)
		err = d.transport.RestrictUser(ctx, payload.ChatID, payload.UserID, until)
	case domain.RestrictionTemporaryBan:
		until := d.now().Add(time.Duration(payload.DurationSeconds) * time.Second)
		err = d.transport.BanUser(ctx, payload.ChatID, payload.UserID, until)
	case domain.RestrictionPermanentBan:
		err = d.transport.BanUser(ctx, payload.ChatID, payload.UserID, time.Time{})
	default:
		log.Warnf("job %s: moderation action %q carries no transport call, dropping", env.JobID, payload.ActionType)
		return
	}
	if err != nil {
		log.Errorf("job %s: apply %s to user %d in chat %s: %v",
			env.JobID, payload.ActionType, payload.UserID, payload.ChatID, err)
		return
	}
	d.hub.Broadcast(ModerationEvent{
		Kind:       "moderation_action",
		ChatID:     payload.ChatID,
		UserID:     payload.UserID,
		ActionType: string(payload.ActionType),
		OccurredAt: d.now(),
	})
}
