package domain

import (
	"encoding/json"
	"fmt"
)

type MessageType string

// General queue message types.
const (
	MsgTextToAnalyze            MessageType = "text_to_analyze"
	MsgMyChatStatsCommand       MessageType = "my_chat_stats_command_tg"
	MsgMyGlobalStatsCommand     MessageType = "my_global_stats_command_tg"
	MsgChatStatsCommand         MessageType = "chat_stats_command_tg"
	MsgGlobalStatsCommand       MessageType = "global_stats_command_tg"
	MsgChatTopCommand           MessageType = "chat_top_command_tg"
	MsgGlobalTopCommand         MessageType = "global_top_command_tg"
	MsgChatGlobalTopCommand     MessageType = "chat_global_top_command_tg"
	MsgMyChatRankingCommand     MessageType = "my_chat_ranking_command_tg"
	MsgMyGlobalRankingCommand   MessageType = "my_global_ranking_command_tg"
	MsgGlobalChatRankingCommand MessageType = "global_chat_ranking_command_tg"
)

// Result queue message types.
const (
	MsgTextAnalysisCompleted MessageType = "text_analysis_completed"
)

// Notification queue message types.
const (
	MsgMyChatStatsAnswer       MessageType = "my_chat_stats_command_answer"
	MsgMyGlobalStatsAnswer     MessageType = "my_global_stats_command_answer"
	MsgChatStatsAnswer         MessageType = "chat_stats_command_answer"
	MsgGlobalStatsAnswer       MessageType = "global_stats_command_answer"
	MsgChatTopAnswer           MessageType = "chat_top_command_answer"
	MsgGlobalTopAnswer         MessageType = "global_top_command_answer"
	MsgChatGlobalTopAnswer     MessageType = "chat_global_top_command_answer"
	MsgMyChatRankingAnswer     MessageType = "my_chat_ranking_command_answer"
	MsgMyGlobalRankingAnswer   MessageType = "my_global_ranking_command_answer"
	MsgGlobalChatRankingAnswer MessageType = "global_chat_ranking_command_answer"
	MsgAdminNotification       MessageType = "admin_notification"
	MsgUserNotification        MessageType = "user_notification"
	MsgModerationAction        MessageType = "moderation_action"
)

// Envelope is the unit carried on every queue. JobID is a
// caller-generated correlation id, unique per enqueue; the transport
// enforces no uniqueness, so duplicate delivery is possible.
type Envelope struct {
	JobID  string          `json:"job_id"`
	Result json.RawMessage `json:"result"`
}

func NewEnvelope(jobID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{JobID: jobID, Result: body}, nil
}

// MessageType peeks at the message_type field without decoding the
// full payload.
func (e Envelope) MessageType() (MessageType, error) {
	var head struct {
		MessageType MessageType `json:"message_type"`
	}
	if err := json.Unmarshal(e.Result, &head); err != nil {
		return "", fmt.Errorf("decode message_type: %w", err)
	}
	return head.MessageType, nil
}

func (e Envelope) DecodePayload(dst any) error {
	return json.Unmarshal(e.Result, dst)
}

type TextToAnalyzePayload struct {
	MessageType MessageType `json:"message_type"`
	UserID      int64       `json:"user_id"`
	Name        string      `json:"name"`
	Username    string      `json:"username"`
	ChatMessage ChatMessage `json:"chat_message"`
}

type TextAnalysisCompletedPayload struct {
	MessageType    MessageType     `json:"message_type"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Username       string          `json:"username"`
	ChatID         string          `json:"chat_id"`
	MessageID      string          `json:"message_id"`
	Text           string          `json:"text"`
	Timestamp      string          `json:"timestamp"`
	AnalysisResult []LanguageScore `json:"analysis_result"`
}

// ReportCommandPayload is shared by every stats/top/ranking command.
// Language is an optional filter; Limit caps top-N lists (0 = default).
type ReportCommandPayload struct {
	MessageType MessageType `json:"message_type"`
	ChatID      string      `json:"chat_id"`
	UserID      int64       `json:"user_id"`
	Language    string      `json:"language,omitempty"`
	Limit       int         `json:"limit,omitempty"`
}

// LanguageFilter is one inline filter action attached to top/ranking
// answers: re-running the command with Code set scopes the report to
// that language.
type LanguageFilter struct {
	Code        string `json:"lang_code"`
	Count       int    `json:"count"`
	DisplayName string `json:"display_name"`
}

// ReportAnswerPayload carries a formatted report back toward delivery.
type ReportAnswerPayload struct {
	MessageType MessageType      `json:"message_type"`
	ChatID      string           `json:"chat_id"`
	UserID      int64            `json:"user_id,omitempty"`
	Text        string           `json:"text"`
	Filters     []LanguageFilter `json:"filters,omitempty"`
}

type AdminNotificationPayload struct {
	MessageType MessageType `json:"message_type"`
	ChatID      string      `json:"chat_id"`
	Text        string      `json:"text"`
}

type UserNotificationPayload struct {
	MessageType MessageType `json:"message_type"`
	UserID      int64       `json:"user_id"`
	Text        string      `json:"text"`
}

type ModerationActionPayload struct {
	MessageType     MessageType     `json:"message_type"`
	UserID          int64           `json:"user_id"`
	ChatID          string          `json:"chat_id"`
	MessageID       string          `json:"message_id"`
	ActionType      RestrictionType `json:"action_type"`
	DurationSeconds int64           `json:"duration_seconds,omitempty"`
}

// AnswerTypeFor maps a report command to its answer counterpart.
func AnswerTypeFor(cmd MessageType) (MessageType, bool) {
	switch cmd {
	case MsgMyChatStatsCommand:
		return MsgMyChatStatsAnswer, true
	case MsgMyGlobalStatsCommand:
		return MsgMyGlobalStatsAnswer, true
	case MsgChatStatsCommand:
		return MsgChatStatsAnswer, true
	case MsgGlobalStatsCommand:
		return MsgGlobalStatsAnswer, true
	case MsgChatTopCommand:
		return MsgChatTopAnswer, true
	case MsgGlobalTopCommand:
		return MsgGlobalTopAnswer, true
	case MsgChatGlobalTopCommand:
		return MsgChatGlobalTopAnswer, true
	case MsgMyChatRankingCommand:
		return MsgMyChatRankingAnswer, true
	case MsgMyGlobalRankingCommand:
		return MsgMyGlobalRankingAnswer, true
	case MsgGlobalChatRankingCommand:
		return MsgGlobalChatRankingAnswer, true
	}
	return "", false
}
