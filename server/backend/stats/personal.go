package stats

import (
	"sort"

	"langmod/server/backend/domain"
)

// PersonalStats is one user's report, either across every chat they
// participate in or scoped to a single chat.
type PersonalStats struct {
	ChatScoped         bool
	TotalChats         int
	TotalMessages      int
	TotalMessageLength int
	AverageLength      float64
	MessagesByChat     map[string]int
	AvgLengthByChat    map[string]float64
	LanguageCounts     []LanguageCount
}

// LanguageCount is one per-language tally, ordered by descending count
// inside reports. It doubles as the filter action carried on top and
// ranking answers.
type LanguageCount struct {
	Code        string `json:"code"`
	Count       int    `json:"count"`
	DisplayName string `json:"display_name"`
}

// ComputePersonalStats aggregates one user's history. A non-empty
// chatID scopes the report to that chat and omits the per-chat maps.
func ComputePersonalStats(user domain.User, chatID string) PersonalStats {
	history := user.ChatHistory
	if chatID != "" {
		scoped := map[string][]domain.ChatMessage{}
		if messages, ok := history[chatID]; ok {
			scoped[chatID] = messages
		}
		history = scoped
	}

	report := PersonalStats{ChatScoped: chatID != "", TotalChats: len(history)}
	langCounts := map[string]int{}
	for _, messages := range history {
		report.TotalMessages += len(messages)
		report.TotalMessageLength += totalLength(messages)
		for _, msg := range messages {
			if lang, ok := countedLanguage(msg); ok {
				langCounts[lang]++
			}
		}
	}
	if report.TotalMessages > 0 {
		report.AverageLength = float64(report.TotalMessageLength) / float64(report.TotalMessages)
	}
	report.LanguageCounts = sortedLanguageCounts(langCounts)

	if chatID == "" {
		report.MessagesByChat = map[string]int{}
		report.AvgLengthByChat = map[string]float64{}
		for id, messages := range history {
			report.MessagesByChat[id] = len(messages)
			report.AvgLengthByChat[id] = averageLength(messages)
		}
	}
	return report
}

// sortedLanguageCounts orders counts descending with ascending code as
// the tie-break and attaches display names.
func sortedLanguageCounts(counts map[string]int) []LanguageCount {
	out := make([]LanguageCount, 0, len(counts))
	for code, count := range counts {
		out = append(out, LanguageCount{Code: code, Count: count, DisplayName: DisplayName(code)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	return out
}
