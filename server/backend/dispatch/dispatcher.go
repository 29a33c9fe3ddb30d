// Package dispatch routes job envelopes from the general and result
// queues to their handlers. Routing is an exhaustive switch over the
// closed message-type set; unroutable jobs are logged and dropped
// without retry.
package dispatch

import (
	"context"
	"encoding/json"

	"langmod/server/backend/domain"
	"langmod/server/common/log"
)

type TextForwarder interface {
	ForwardToWorker(ctx context.Context, jobID string, payload domain.TextToAnalyzePayload) error
}

type ReportHandler interface {
	HandleReportCommand(ctx context.Context, jobID string, cmd domain.ReportCommandPayload) error
}

type ResultHandler interface {
	HandleAnalysisCompleted(ctx context.Context, jobID string, payload domain.TextAnalysisCompletedPayload) error
}

type Dispatcher struct {
	analyze TextForwarder
	reports ReportHandler
	results ResultHandler
}

func New(analyze TextForwarder, reports ReportHandler, results ResultHandler) *Dispatcher {
	return &Dispatcher{analyze: analyze, reports: reports, results: results}
}

// HandleGeneral consumes one general-queue delivery. A nil return acks
// the message; handler errors propagate so the broker redelivers.
func (d *Dispatcher) HandleGeneral(ctx context.Context, body []byte) error {
	env, msgType, ok := decode(body)
	if !ok {
		return nil
	}

	switch msgType {
	case domain.MsgTextToAnalyze:
		var payload domain.TextToAnalyzePayload
		if err := env.DecodePayload(&payload); err != nil {
			log.Errorf("job %s: malformed %s payload: %v", env.JobID, msgType, err)
			return nil
		}
		return d.analyze.ForwardToWorker(ctx, env.JobID, payload)

	case domain.MsgMyChatStatsCommand,
		domain.MsgMyGlobalStatsCommand,
		domain.MsgChatStatsCommand,
		domain.MsgGlobalStatsCommand,
		domain.MsgChatTopCommand,
		domain.MsgGlobalTopCommand,
		domain.MsgChatGlobalTopCommand,
		domain.MsgMyChatRankingCommand,
		domain.MsgMyGlobalRankingCommand,
		domain.MsgGlobalChatRankingCommand:
		var cmd domain.ReportCommandPayload
		if err := env.DecodePayload(&cmd); err != nil {
			log.Errorf("job %s: malformed %s payload: %v", env.JobID, msgType, err)
			return nil
		}
		return d.reports.HandleReportCommand(ctx, env.JobID, cmd)

	default:
		log.Warnf("job %s: unroutable general-queue message type %q, dropping", env.JobID, msgType)
		return nil
	}
}

// HandleResult consumes one result-queue delivery.
func (d *Dispatcher) HandleResult(ctx context.Context, body []byte) error {
	env, msgType, ok := decode(body)
	if !ok {
		return nil
	}

	switch msgType {
	case domain.MsgTextAnalysisCompleted:
		var payload domain.TextAnalysisCompletedPayload
		if err := env.DecodePayload(&payload); err != nil {
			log.Errorf("job %s: malformed %s payload: %v", env.JobID, msgType, err)
			return nil
		}
		return d.results.HandleAnalysisCompleted(ctx, env.JobID, payload)

	default:
		log.Warnf("job %s: unroutable result-queue message type %q, dropping", env.JobID, msgType)
		return nil
	}
}

func decode(body []byte) (domain.Envelope, domain.MessageType, bool) {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Errorf("malformed envelope, dropping: %v", err)
		return domain.Envelope{}, "", false
	}
	msgType, err := env.MessageType()
	if err != nil {
		log.Errorf("job %s: envelope without message_type, dropping: %v", env.JobID, err)
		return domain.Envelope{}, "", false
	}
	return env, msgType, true
}
