package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"langmod/server/backend/domain"
	"langmod/server/backend/moderation"
	"langmod/server/store"
)

type published struct {
	queue string
	env   domain.Envelope
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, queue string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	f.messages = append(f.messages, published{queue: queue, env: env})
	return nil
}

func (f *fakePublisher) ofType(t *testing.T, msgType domain.MessageType) []published {
	t.Helper()
	var out []published
	for _, msg := range f.messages {
		got, err := msg.env.MessageType()
		if err != nil {
			t.Fatalf("published envelope without message_type: %v", err)
		}
		if got == msgType {
			out = append(out, msg)
		}
	}
	return out
}

type fakeStore struct {
	users        map[int64]domain.User
	created      []domain.User
	appended     []domain.ChatMessage
	attachCalls  int
	attachResult bool
	chats        map[string]domain.Chat
	restrictions []domain.RestrictionRecord
	snapshot     []domain.User

	appendRestrictionErr error
	snapshotErr          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]domain.User{},
		chats: map[string]domain.Chat{},
	}
}

func (f *fakeStore) UserExists(_ context.Context, userID int64) (bool, error) {
	_, ok := f.users[userID]
	return ok, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user domain.User) error {
	f.users[user.UserID] = user
	f.created = append(f.created, user)
	return nil
}

func (f *fakeStore) GetUserWithHistory(_ context.Context, userID int64) (domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) AppendChatMessage(_ context.Context, _ int64, msg domain.ChatMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeStore) AttachAnalysis(_ context.Context, _, _ string, _ []domain.LanguageScore) (bool, error) {
	f.attachCalls++
	return f.attachResult, nil
}

func (f *fakeStore) CountAnalyzedMessages(_ context.Context, _ int64, _ string) (int, error) {
	return 0, nil
}

func (f *fakeStore) SnapshotUsers(_ context.Context) ([]domain.User, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.snapshot, nil
}

func (f *fakeStore) GetChat(_ context.Context, chatID string) (domain.Chat, error) {
	chat, ok := f.chats[chatID]
	if !ok {
		return domain.Chat{}, store.ErrNotFound
	}
	return chat, nil
}

func (f *fakeStore) CreateChat(_ context.Context, chat domain.Chat) error {
	f.chats[chat.ChatID] = chat
	return nil
}

func (f *fakeStore) UpdateChatName(_ context.Context, chatID, name string) error {
	chat := f.chats[chatID]
	chat.LastKnownName = name
	f.chats[chatID] = chat
	return nil
}

func (f *fakeStore) UpdateChatSettings(_ context.Context, chatID string, settings domain.ChatSettings) error {
	chat := f.chats[chatID]
	chat.ChatSettings = settings
	f.chats[chatID] = chat
	return nil
}

func (f *fakeStore) AppendRestriction(_ context.Context, rec domain.RestrictionRecord) error {
	if f.appendRestrictionErr != nil {
		return f.appendRestrictionErr
	}
	f.restrictions = append(f.restrictions, rec)
	return nil
}

func (f *fakeStore) RestrictionHistory(_ context.Context, userID int64, chatID string) ([]domain.RestrictionRecord, error) {
	var out []domain.RestrictionRecord
	for _, rec := range f.restrictions {
		if rec.UserID != userID {
			continue
		}
		if chatID != "" && rec.ChatID != chatID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func completedPayload() domain.TextAnalysisCompletedPayload {
	return domain.TextAnalysisCompletedPayload{
		MessageType:    domain.MsgTextAnalysisCompleted,
		UserID:         42,
		Name:           "alice",
		ChatID:         "c1",
		MessageID:      "m1",
		Text:           "привіт",
		Timestamp:      "2025-06-01T10:00:00",
		AnalysisResult: []domain.LanguageScore{{Lang: "uk", Prob: 0.92}},
	}
}

func moderatedChat(restriction domain.Restriction, notifyUser bool) domain.Chat {
	return domain.Chat{
		ChatID: "c1",
		ChatSettings: domain.ChatSettings{
			AllowedLanguages: []string{"en"},
			ModerationRules: []domain.ModerationRule{{
				Name:    "no foreign",
				Message: "please write in English",
				Conditions: []domain.RuleCondition{{
					Type:   domain.ConditionNotInAllowed,
					Values: domain.ConditionValues{Threshold: 0.8},
				}},
				ConditionRelation: domain.RelationAnd,
				Restriction:       restriction,
				NotifyUser:        notifyUser,
			}},
		},
	}
}

func newResultService(st *fakeStore, pub *fakePublisher) *ResultService {
	svc := NewResultService(st, moderation.NewEngine(st), pub, "notification")
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestAnalysisCompletedCreatesUserAndAttaches(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	pub := &fakePublisher{}
	svc := newResultService(st, pub)

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("HandleAnalysisCompleted: %v", err)
	}
	if len(st.created) != 1 || st.created[0].UserID != 42 {
		t.Errorf("unknown sender must be created, got %+v", st.created)
	}
	if st.attachCalls != 1 || len(st.appended) != 0 {
		t.Errorf("analysis must attach to the recorded message, attach=%d append=%d", st.attachCalls, len(st.appended))
	}
}

func TestAnalysisCompletedFallsBackToInsert(t *testing.T) {
	st := newFakeStore()
	st.users[42] = domain.User{UserID: 42}
	st.attachResult = false
	svc := newResultService(st, &fakePublisher{})

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("HandleAnalysisCompleted: %v", err)
	}
	if len(st.appended) != 1 {
		t.Fatalf("unmatched attach must append the full message, got %d appends", len(st.appended))
	}
	if st.appended[0].AnalysisResult == nil {
		t.Errorf("fallback insert must carry the analysis")
	}
}

func TestTriggeredRuleAppendsRecordAndNotifies(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	st.chats["c1"] = moderatedChat(domain.Restriction{
		RestrictionType: domain.RestrictionTimeout,
		DurationSeconds: 600,
	}, true)
	pub := &fakePublisher{}
	svc := newResultService(st, pub)

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("HandleAnalysisCompleted: %v", err)
	}
	if len(st.restrictions) != 1 {
		t.Fatalf("want one restriction record, got %d", len(st.restrictions))
	}
	rec := st.restrictions[0]
	if rec.UserID != 42 || rec.RestrictionType != domain.RestrictionTimeout || rec.MessageText != "привіт" {
		t.Errorf("bad record %+v", rec)
	}

	if got := pub.ofType(t, domain.MsgAdminNotification); len(got) != 1 {
		t.Errorf("want one admin notification, got %d", len(got))
	}
	if got := pub.ofType(t, domain.MsgUserNotification); len(got) != 1 {
		t.Errorf("notify_user rule must publish a user notification, got %d", len(got))
	}
	actions := pub.ofType(t, domain.MsgModerationAction)
	if len(actions) != 1 {
		t.Fatalf("timeout must publish a moderation action, got %d", len(actions))
	}
	var action domain.ModerationActionPayload
	if err := actions[0].env.DecodePayload(&action); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if action.ActionType != domain.RestrictionTimeout || action.DurationSeconds != 600 {
		t.Errorf("bad action %+v", action)
	}
}

func TestWarningHasNoTransportAction(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	st.chats["c1"] = moderatedChat(domain.Restriction{RestrictionType: domain.RestrictionWarning}, false)
	pub := &fakePublisher{}
	svc := newResultService(st, pub)

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("HandleAnalysisCompleted: %v", err)
	}
	if got := pub.ofType(t, domain.MsgModerationAction); len(got) != 0 {
		t.Errorf("warnings are text-only, got %d actions", len(got))
	}
	if got := pub.ofType(t, domain.MsgUserNotification); len(got) != 0 {
		t.Errorf("notify_user false must skip the user notice, got %d", len(got))
	}
}

func TestUnknownChatSkipsModeration(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	svc := newResultService(st, &fakePublisher{})

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("missing chat settings must not fail the handler: %v", err)
	}
	if len(st.restrictions) != 0 {
		t.Errorf("no rules can trigger without settings")
	}
}

func TestRestrictionStoreFailurePropagates(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	st.chats["c1"] = moderatedChat(domain.Restriction{RestrictionType: domain.RestrictionWarning}, false)
	st.appendRestrictionErr = errors.New("store down")
	svc := newResultService(st, &fakePublisher{})

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err == nil {
		t.Fatalf("ledger write failure must propagate for redelivery")
	}
}

// Redelivery applies side effects again: the pipeline carries no
// idempotency key, so a duplicate result doubles the ledger entry.
func TestDuplicateDeliveryDuplicatesRecord(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	st.chats["c1"] = moderatedChat(domain.Restriction{RestrictionType: domain.RestrictionWarning}, false)
	svc := newResultService(st, &fakePublisher{})

	for i := 0; i < 2; i++ {
		if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(st.restrictions) != 2 {
		t.Errorf("duplicate delivery appends twice, got %d records", len(st.restrictions))
	}
}

func TestNotificationFailureDoesNotFailHandler(t *testing.T) {
	st := newFakeStore()
	st.attachResult = true
	st.chats["c1"] = moderatedChat(domain.Restriction{RestrictionType: domain.RestrictionWarning}, true)
	svc := newResultService(st, &fakePublisher{err: errors.New("broker gone")})

	if err := svc.HandleAnalysisCompleted(context.Background(), "job-1", completedPayload()); err != nil {
		t.Fatalf("publish failures are logged, not returned: %v", err)
	}
	if len(st.restrictions) != 1 {
		t.Errorf("the restriction must stick even when notification fails")
	}
}

func TestAnalyzeServiceForwardsEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewAnalyzeService(pub, "worker")

	payload := domain.TextToAnalyzePayload{
		MessageType: domain.MsgTextToAnalyze,
		UserID:      42,
		ChatMessage: domain.ChatMessage{ChatID: "c1", MessageID: "m1", Content: "hi"},
	}
	if err := svc.ForwardToWorker(context.Background(), "job-9", payload); err != nil {
		t.Fatalf("ForwardToWorker: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].queue != "worker" {
		t.Fatalf("want one worker-queue publish, got %+v", pub.messages)
	}
	if pub.messages[0].env.JobID != "job-9" {
		t.Errorf("job id must survive the hop, got %q", pub.messages[0].env.JobID)
	}
}

func TestStatsServiceAnswersPersonalStats(t *testing.T) {
	st := newFakeStore()
	st.users[42] = domain.User{
		UserID: 42, Name: "alice",
		ChatHistory: map[string][]domain.ChatMessage{
			"c1": {{ChatID: "c1", MessageID: "m1", Content: "hello", Timestamp: "2025-01-01T00:00:00"}},
		},
	}
	pub := &fakePublisher{}
	svc := NewStatsService(st, pub, "notification")

	cmd := domain.ReportCommandPayload{MessageType: domain.MsgMyChatStatsCommand, ChatID: "c1", UserID: 42}
	if err := svc.HandleReportCommand(context.Background(), "job-1", cmd); err != nil {
		t.Fatalf("HandleReportCommand: %v", err)
	}
	answers := pub.ofType(t, domain.MsgMyChatStatsAnswer)
	if len(answers) != 1 || answers[0].queue != "notification" {
		t.Fatalf("want one answer on the notification queue, got %+v", pub.messages)
	}
	var answer domain.ReportAnswerPayload
	if err := answers[0].env.DecodePayload(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.ChatID != "c1" || answer.UserID != 42 || answer.Text == "" {
		t.Errorf("bad answer %+v", answer)
	}
}

func TestStatsServiceAnswersUnknownUser(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewStatsService(newFakeStore(), pub, "notification")

	cmd := domain.ReportCommandPayload{MessageType: domain.MsgMyGlobalStatsCommand, UserID: 99}
	if err := svc.HandleReportCommand(context.Background(), "job-1", cmd); err != nil {
		t.Fatalf("HandleReportCommand: %v", err)
	}
	var answer domain.ReportAnswerPayload
	if err := pub.ofType(t, domain.MsgMyGlobalStatsAnswer)[0].env.DecodePayload(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "No messages found in your history!" {
		t.Errorf("unknown users still get an answer, got %q", answer.Text)
	}
}

func TestStatsServiceTopAnswerCarriesFilters(t *testing.T) {
	st := newFakeStore()
	st.snapshot = []domain.User{{
		UserID: 1, Name: "alice",
		ChatHistory: map[string][]domain.ChatMessage{
			"c1": {{
				ChatID: "c1", MessageID: "m1", Content: "привіт", Timestamp: "2025-01-01T00:00:00",
				AnalysisResult: []domain.LanguageScore{{Lang: "uk", Prob: 0.9}},
			}},
		},
	}}
	pub := &fakePublisher{}
	svc := NewStatsService(st, pub, "notification")

	cmd := domain.ReportCommandPayload{MessageType: domain.MsgChatTopCommand, ChatID: "c1", UserID: 1}
	if err := svc.HandleReportCommand(context.Background(), "job-1", cmd); err != nil {
		t.Fatalf("HandleReportCommand: %v", err)
	}
	var answer domain.ReportAnswerPayload
	if err := pub.ofType(t, domain.MsgChatTopAnswer)[0].env.DecodePayload(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if len(answer.Filters) != 1 || answer.Filters[0].Code != "uk" || answer.Filters[0].Count != 1 {
		t.Errorf("top answers carry language filter actions, got %+v", answer.Filters)
	}
}

func TestStatsServiceSnapshotFailurePropagates(t *testing.T) {
	st := newFakeStore()
	st.snapshotErr = errors.New("store down")
	svc := NewStatsService(st, &fakePublisher{}, "notification")

	cmd := domain.ReportCommandPayload{MessageType: domain.MsgGlobalStatsCommand}
	if err := svc.HandleReportCommand(context.Background(), "job-1", cmd); err == nil {
		t.Fatalf("snapshot failure must propagate for redelivery")
	}
}
