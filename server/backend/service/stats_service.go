package service

import (
	"context"
	"errors"
	"fmt"

	"langmod/server/backend/domain"
	"langmod/server/backend/format"
	"langmod/server/backend/stats"
	"langmod/server/store"
)

const defaultTopLimit = 10

// StatsService answers the report commands: it loads a snapshot,
// aggregates it, formats the text, and publishes the answer to the
// notification queue under the command's job id.
type StatsService struct {
	store             store.Store
	pub               Publisher
	notificationQueue string
}

func NewStatsService(st store.Store, pub Publisher, notificationQueue string) *StatsService {
	return &StatsService{store: st, pub: pub, notificationQueue: notificationQueue}
}

func (s *StatsService) HandleReportCommand(ctx context.Context, jobID string, cmd domain.ReportCommandPayload) error {
	answerType, ok := domain.AnswerTypeFor(cmd.MessageType)
	if !ok {
		return fmt.Errorf("no answer type for command %q", cmd.MessageType)
	}

	text, filters, err := s.buildReport(ctx, cmd)
	if err != nil {
		return err
	}

	answer := domain.ReportAnswerPayload{
		MessageType: answerType,
		ChatID:      cmd.ChatID,
		UserID:      cmd.UserID,
		Text:        text,
		Filters:     filters,
	}
	return publishEnvelope(ctx, s.pub, s.notificationQueue, jobID, answer)
}

func (s *StatsService) buildReport(ctx context.Context, cmd domain.ReportCommandPayload) (string, []domain.LanguageFilter, error) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}

	switch cmd.MessageType {
	case domain.MsgMyChatStatsCommand:
		return s.personalStats(ctx, cmd.UserID, cmd.ChatID)
	case domain.MsgMyGlobalStatsCommand:
		return s.personalStats(ctx, cmd.UserID, "")

	case domain.MsgChatStatsCommand:
		users, err := s.store.SnapshotUsers(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("snapshot users: %w", err)
		}
		return format.ChatStats(stats.ComputeChatStats(users, cmd.ChatID)), nil, nil

	case domain.MsgGlobalStatsCommand:
		users, err := s.store.SnapshotUsers(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("snapshot users: %w", err)
		}
		return format.GlobalStats(stats.ComputeGlobalStats(users)), nil, nil

	case domain.MsgChatTopCommand:
		return s.topReport(ctx, cmd.ChatID, cmd.Language, limit)
	case domain.MsgGlobalTopCommand:
		return s.topReport(ctx, "", cmd.Language, limit)

	case domain.MsgChatGlobalTopCommand:
		users, err := s.store.SnapshotUsers(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("snapshot users: %w", err)
		}
		report := stats.GenerateChatGlobalTop(users, cmd.Language, limit)
		return format.ChatGlobalTop(report), format.FilterActions(report.TopLanguages), nil

	case domain.MsgMyChatRankingCommand:
		return s.userRanking(ctx, cmd.UserID, cmd.ChatID, cmd.Language)
	case domain.MsgMyGlobalRankingCommand:
		return s.userRanking(ctx, cmd.UserID, "", cmd.Language)

	case domain.MsgGlobalChatRankingCommand:
		users, err := s.store.SnapshotUsers(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("snapshot users: %w", err)
		}
		ranking := stats.ComputeChatRanking(users, cmd.Language, cmd.ChatID)
		full := stats.GenerateChatGlobalTop(users, cmd.Language, defaultTopLimit)
		return format.ChatRanking(ranking), format.FilterActions(full.TopLanguages), nil
	}
	return "", nil, fmt.Errorf("unsupported report command %q", cmd.MessageType)
}

func (s *StatsService) personalStats(ctx context.Context, userID int64, chatID string) (string, []domain.LanguageFilter, error) {
	user, err := s.store.GetUserWithHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "No messages found in your history!", nil, nil
		}
		return "", nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return format.PersonalStats(stats.ComputePersonalStats(user, chatID)), nil, nil
}

func (s *StatsService) topReport(ctx context.Context, chatID, lang string, limit int) (string, []domain.LanguageFilter, error) {
	users, err := s.store.SnapshotUsers(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot users: %w", err)
	}
	if len(users) == 0 {
		return "No users with message history found!", nil, nil
	}
	report := stats.GenerateTopReport(users, chatID, lang, limit)
	return format.TopReport(report), format.FilterActions(report.TopLanguages), nil
}

func (s *StatsService) userRanking(ctx context.Context, userID int64, chatID, lang string) (string, []domain.LanguageFilter, error) {
	users, err := s.store.SnapshotUsers(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot users: %w", err)
	}
	ranking := stats.ComputeUserRanking(users, chatID, lang, userID)
	full := stats.GenerateTopReport(users, chatID, lang, defaultTopLimit)
	return format.UserRanking(ranking, chatID != ""), format.FilterActions(full.TopLanguages), nil
}
