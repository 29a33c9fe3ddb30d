package stats

import (
	"reflect"
	"testing"

	"langmod/server/backend/domain"
)

func msg(chatID, messageID, content, ts string, scores ...domain.LanguageScore) domain.ChatMessage {
	return domain.ChatMessage{
		ChatID:         chatID,
		MessageID:      messageID,
		Content:        content,
		Timestamp:      ts,
		AnalysisResult: scores,
	}
}

func en(prob float64) domain.LanguageScore { return domain.LanguageScore{Lang: "en", Prob: prob} }
func uk(prob float64) domain.LanguageScore { return domain.LanguageScore{Lang: "uk", Prob: prob} }

func sampleUsers() []domain.User {
	return []domain.User{
		{
			UserID: 1, Name: "alice",
			ChatHistory: map[string][]domain.ChatMessage{
				"c1": {
					msg("c1", "m1", "hello there", "2025-01-01T10:00:00", en(0.95)),
					msg("c1", "m2", "привіт", "2025-01-02T10:00:00", uk(0.9), en(0.1)),
				},
				"c2": {
					msg("c2", "m3", "ok", "2025-01-03T10:00:00", en(0.4)),
				},
			},
		},
		{
			UserID: 2, Name: "bob",
			ChatHistory: map[string][]domain.ChatMessage{
				"c1": {
					msg("c1", "m4", "longer message here", "2024-12-31T09:00:00", en(0.99)),
				},
			},
		},
		{
			UserID: 3, Name: "carol",
			ChatHistory: map[string][]domain.ChatMessage{},
		},
	}
}

func TestPersonalStatsGlobal(t *testing.T) {
	report := ComputePersonalStats(sampleUsers()[0], "")
	if report.TotalChats != 2 || report.TotalMessages != 3 {
		t.Fatalf("got %d chats, %d messages", report.TotalChats, report.TotalMessages)
	}
	wantLength := len([]rune("hello there")) + len([]rune("привіт")) + len([]rune("ok"))
	if report.TotalMessageLength != wantLength {
		t.Errorf("total length = %d, want %d", report.TotalMessageLength, wantLength)
	}
	if report.MessagesByChat["c1"] != 2 || report.MessagesByChat["c2"] != 1 {
		t.Errorf("messages by chat = %v", report.MessagesByChat)
	}
	// m3's top language is en at 0.4, below the counting threshold.
	want := []LanguageCount{
		{Code: "en", Count: 1, DisplayName: DisplayName("en")},
		{Code: "uk", Count: 1, DisplayName: DisplayName("uk")},
	}
	if !reflect.DeepEqual(report.LanguageCounts, want) {
		t.Errorf("language counts = %v, want %v", report.LanguageCounts, want)
	}
}

func TestPersonalStatsChatScoped(t *testing.T) {
	report := ComputePersonalStats(sampleUsers()[0], "c2")
	if report.TotalMessages != 1 || report.TotalChats != 1 {
		t.Fatalf("got %d messages in %d chats", report.TotalMessages, report.TotalChats)
	}
	if report.MessagesByChat != nil {
		t.Errorf("chat-scoped report must omit per-chat maps")
	}
	if len(report.LanguageCounts) != 0 {
		t.Errorf("en@0.4 must not count as a top language, got %v", report.LanguageCounts)
	}

	missing := ComputePersonalStats(sampleUsers()[0], "no-such-chat")
	if missing.TotalMessages != 0 || missing.AverageLength != 0.0 {
		t.Errorf("unknown chat must yield an empty report, got %+v", missing)
	}
}

func TestChatStats(t *testing.T) {
	report := ComputeChatStats(sampleUsers(), "c1")
	if report.TotalMembers != 3 || report.MembersWithMessages != 2 {
		t.Fatalf("members = %d/%d", report.MembersWithMessages, report.TotalMembers)
	}
	if report.TotalMessages != 3 {
		t.Errorf("total messages = %d, want 3", report.TotalMessages)
	}
	if report.UniqueLanguages != 2 {
		t.Errorf("unique languages = %d, want 2", report.UniqueLanguages)
	}
	if report.LanguageCounts[0].Code != "en" || report.LanguageCounts[0].Count != 2 {
		t.Errorf("top language = %+v, want en x2", report.LanguageCounts[0])
	}
	wantPct := float64(2) / 3 * 100
	if got := report.LanguagePercentages["en"]; got != wantPct {
		t.Errorf("en percentage = %f, want %f", got, wantPct)
	}
}

func TestGlobalStats(t *testing.T) {
	report := ComputeGlobalStats(sampleUsers())
	if report.TotalUsers != 3 || report.UsersWithMessages != 2 {
		t.Fatalf("users = %d/%d", report.UsersWithMessages, report.TotalUsers)
	}
	if report.TotalChats != 2 || report.TotalMessages != 4 {
		t.Errorf("chats = %d, messages = %d", report.TotalChats, report.TotalMessages)
	}
	if report.TopUsers[0].UserID != 1 || report.TopUsers[0].Count != 3 {
		t.Errorf("top user = %+v", report.TopUsers[0])
	}
	if report.TopChats[0].ChatID != "c1" || report.TopChats[0].Count != 3 {
		t.Errorf("top chat = %+v", report.TopChats[0])
	}
}

func TestTopReportChatScoped(t *testing.T) {
	report := GenerateTopReport(sampleUsers(), "c1", "", 10)
	if len(report.MostMessages) != 3 {
		t.Fatalf("every user gets a standing entry, got %d", len(report.MostMessages))
	}
	if report.MostMessages[0].UserID != 1 || report.MostMessages[0].Count != 2 {
		t.Errorf("most messages = %+v", report.MostMessages[0])
	}
	// Timestamps order lexically: bob's 2024-12-31 precedes alice's.
	if report.EarliestMessages[0].UserID != 2 {
		t.Errorf("earliest = %+v, want bob first", report.EarliestMessages[0])
	}
	if report.LatestMessages[0].UserID != 1 || report.LatestMessages[0].Timestamp != "2025-01-02T10:00:00" {
		t.Errorf("latest = %+v", report.LatestMessages[0])
	}
	// carol has no messages: present in counts, absent from timestamps.
	if len(report.EarliestMessages) != 2 {
		t.Errorf("users without messages must be dropped from timestamp standings")
	}
}

func TestTopReportLanguageFilter(t *testing.T) {
	report := GenerateTopReport(sampleUsers(), "", "uk", 10)
	if report.MostMessages[0].UserID != 1 || report.MostMessages[0].Count != 1 {
		t.Fatalf("uk filter should keep only alice's m2, got %+v", report.MostMessages[0])
	}
	for _, entry := range report.MostMessages[1:] {
		if entry.Count != 0 {
			t.Errorf("non-uk users must have zero counts, got %+v", entry)
		}
	}
	if len(report.TopLanguages) != 1 || report.TopLanguages[0].Code != "uk" {
		t.Errorf("filtered tally = %v", report.TopLanguages)
	}
}

func TestRankingTieBreakDeterminism(t *testing.T) {
	tied := []domain.User{
		{UserID: 7, Name: "g", ChatHistory: map[string][]domain.ChatMessage{
			"c1": {msg("c1", "a", "xx", "2025-01-01T00:00:00")},
		}},
		{UserID: 3, Name: "c", ChatHistory: map[string][]domain.ChatMessage{
			"c1": {msg("c1", "b", "yy", "2025-01-01T00:00:00")},
		}},
	}
	first := GenerateTopReport(tied, "c1", "", 0)
	second := GenerateTopReport(tied, "c1", "", 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same snapshot must produce identical reports")
	}
	if first.MostMessages[0].UserID != 3 || first.MostMessages[1].UserID != 7 {
		t.Errorf("ties break by ascending user id, got %+v", first.MostMessages)
	}
}

func TestUserRankingPositions(t *testing.T) {
	ranking := ComputeUserRanking(sampleUsers(), "", "", 2)
	if ranking.MostMessages.Position != 2 || ranking.MostMessages.Value != 1 {
		t.Errorf("bob's message rank = %+v", ranking.MostMessages)
	}
	if ranking.EarliestMessage.Position != 1 {
		t.Errorf("bob holds the earliest message, got %+v", ranking.EarliestMessage)
	}

	absent := ComputeUserRanking(sampleUsers(), "", "", 99)
	if absent.MostMessages.Position != 0 || absent.EarliestMessage.Position != 0 {
		t.Errorf("unknown user must rank 0 everywhere, got %+v", absent)
	}
}

func TestChatGlobalTop(t *testing.T) {
	report := GenerateChatGlobalTop(sampleUsers(), "", 10)
	if report.MostMessages[0].ChatID != "c1" || report.MostMessages[0].Value != 3 {
		t.Fatalf("most messages = %+v", report.MostMessages[0])
	}
	if report.MostMessages[0].UniqueUsers != 2 {
		t.Errorf("c1 has 2 contributing users, got %d", report.MostMessages[0].UniqueUsers)
	}
	if report.MostUniqueUsers[0].ChatID != "c1" || report.MostUniqueUsers[0].Value != 2 {
		t.Errorf("most unique users = %+v", report.MostUniqueUsers[0])
	}
	if report.EarliestActivity[0].ChatID != "c1" || report.EarliestActivity[0].Timestamp != "2024-12-31T09:00:00" {
		t.Errorf("earliest activity = %+v", report.EarliestActivity[0])
	}
}

func TestChatGlobalTopLanguageFilter(t *testing.T) {
	report := GenerateChatGlobalTop(sampleUsers(), "uk", 10)
	if len(report.MostMessages) != 1 || report.MostMessages[0].ChatID != "c1" {
		t.Fatalf("uk filter must drop chats without matches, got %+v", report.MostMessages)
	}
	if report.MostMessages[0].Value != 1 {
		t.Errorf("c1 has one uk message, got %d", report.MostMessages[0].Value)
	}
}

func TestChatRankingPositions(t *testing.T) {
	ranking := ComputeChatRanking(sampleUsers(), "", "c2")
	if ranking.MostMessages.Position != 2 || ranking.MostMessages.Value != 1 {
		t.Errorf("c2 message rank = %+v", ranking.MostMessages)
	}
	absent := ComputeChatRanking(sampleUsers(), "", "no-such-chat")
	if absent.MostMessages.Position != 0 {
		t.Errorf("unknown chat must rank 0, got %+v", absent.MostMessages)
	}
}

func TestAggregationIdempotent(t *testing.T) {
	users := sampleUsers()
	first := ComputeGlobalStats(users)
	second := ComputeGlobalStats(users)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recomputing over the same snapshot must yield identical numbers")
	}
}

func TestDisplayNameFallback(t *testing.T) {
	if got := DisplayName("xx"); got != "XX" {
		t.Errorf("unknown code falls back to upper case, got %q", got)
	}
	if got := DisplayName("uk"); got == "UK" {
		t.Errorf("known codes use the display table")
	}
}
