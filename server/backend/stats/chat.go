package stats

import "langmod/server/backend/domain"

// ChatStats is the chat-wide report across every member's history in
// one chat.
type ChatStats struct {
	TotalMembers        int
	MembersWithMessages int
	TotalMessages       int
	TotalMessageLength  int
	UniqueLanguages     int
	LanguageCounts      []LanguageCount
	LanguagePercentages map[string]float64
}

func ComputeChatStats(users []domain.User, chatID string) ChatStats {
	report := ChatStats{TotalMembers: len(users)}
	langCounts := map[string]int{}
	for _, user := range users {
		messages := user.ChatHistory[chatID]
		if len(messages) > 0 {
			report.MembersWithMessages++
		}
		report.TotalMessages += len(messages)
		report.TotalMessageLength += totalLength(messages)
		for _, msg := range messages {
			if lang, ok := countedLanguage(msg); ok {
				langCounts[lang]++
			}
		}
	}
	report.UniqueLanguages = len(langCounts)
	report.LanguageCounts = sortedLanguageCounts(langCounts)
	report.LanguagePercentages = map[string]float64{}
	for lang, count := range langCounts {
		if report.TotalMessages > 0 {
			report.LanguagePercentages[lang] = float64(count) / float64(report.TotalMessages) * 100
		} else {
			report.LanguagePercentages[lang] = 0
		}
	}
	return report
}
