package stats

import (
	"sort"

	"langmod/server/backend/domain"
)

// ChatStanding is one chat's entry in a count-valued chat ranking,
// with its contributing-user count alongside.
type ChatStanding struct {
	ChatID      string
	Value       int
	UniqueUsers int
}

// ChatAverage is one chat's entry in an average-valued chat ranking.
type ChatAverage struct {
	ChatID      string
	Average     float64
	UniqueUsers int
}

// ChatTimestamp is one chat's entry in a timestamp-valued chat
// ranking.
type ChatTimestamp struct {
	ChatID      string
	Timestamp   string
	UniqueUsers int
}

// ChatGlobalTop ranks chats against each other across the whole
// snapshot. Chats with a zero value in a standing are omitted from it.
type ChatGlobalTop struct {
	LanguageFilter   string
	MostMessages     []ChatStanding
	MostLength       []ChatStanding
	MostUniqueUsers  []ChatStanding
	MostLanguages    []ChatStanding
	EarliestActivity []ChatTimestamp
	LatestActivity   []ChatTimestamp
	HighestAvgLength []ChatAverage
	TopLanguages     []LanguageCount
}

type chatAccumulator struct {
	messages   int
	length     int
	users      map[int64]struct{}
	earliest   string
	latest     string
	hasStamps  bool
	langCounts map[string]int
}

// GenerateChatGlobalTop builds the chat-vs-chat standings. lang
// restricts the counted messages; limit caps each standing, with 0
// meaning unlimited.
func GenerateChatGlobalTop(users []domain.User, lang string, limit int) ChatGlobalTop {
	acc := map[string]*chatAccumulator{}
	for _, user := range users {
		for chatID, messages := range user.ChatHistory {
			data, ok := acc[chatID]
			if !ok {
				data = &chatAccumulator{users: map[int64]struct{}{}, langCounts: map[string]int{}}
				acc[chatID] = data
			}
			for _, msg := range messages {
				if !matchesLanguage(msg, lang) {
					continue
				}
				data.messages++
				data.length += len([]rune(msg.Content))
				data.users[user.UserID] = struct{}{}
				if !data.hasStamps || msg.Timestamp < data.earliest {
					data.earliest = msg.Timestamp
				}
				if !data.hasStamps || msg.Timestamp > data.latest {
					data.latest = msg.Timestamp
				}
				data.hasStamps = true
				if code, ok := countedLanguage(msg); ok {
					data.langCounts[code]++
				}
			}
		}
	}

	report := ChatGlobalTop{LanguageFilter: lang}
	totalLangCounts := map[string]int{}
	var stamps []ChatTimestamp
	var latest []ChatTimestamp

	for chatID, data := range acc {
		if data.messages == 0 {
			continue
		}
		unique := len(data.users)
		report.MostMessages = append(report.MostMessages, ChatStanding{ChatID: chatID, Value: data.messages, UniqueUsers: unique})
		report.MostLength = append(report.MostLength, ChatStanding{ChatID: chatID, Value: data.length, UniqueUsers: unique})
		report.MostUniqueUsers = append(report.MostUniqueUsers, ChatStanding{ChatID: chatID, Value: unique, UniqueUsers: data.messages})
		if n := len(data.langCounts); n > 0 {
			report.MostLanguages = append(report.MostLanguages, ChatStanding{ChatID: chatID, Value: n, UniqueUsers: unique})
		}
		report.HighestAvgLength = append(report.HighestAvgLength, ChatAverage{
			ChatID:      chatID,
			Average:     float64(data.length) / float64(data.messages),
			UniqueUsers: unique,
		})
		if data.hasStamps {
			stamps = append(stamps, ChatTimestamp{ChatID: chatID, Timestamp: data.earliest, UniqueUsers: unique})
			latest = append(latest, ChatTimestamp{ChatID: chatID, Timestamp: data.latest, UniqueUsers: unique})
		}
		for code, count := range data.langCounts {
			totalLangCounts[code] += count
		}
	}

	report.MostMessages = sortChatStandings(report.MostMessages, limit)
	report.MostLength = sortChatStandings(report.MostLength, limit)
	report.MostUniqueUsers = sortChatStandings(report.MostUniqueUsers, limit)
	report.MostLanguages = sortChatStandings(report.MostLanguages, limit)
	report.HighestAvgLength = sortChatAverages(report.HighestAvgLength, limit)
	report.EarliestActivity = sortChatTimestamps(stamps, true, limit)
	report.LatestActivity = sortChatTimestamps(latest, false, limit)
	report.TopLanguages = clipLanguageCounts(sortedLanguageCounts(totalLangCounts), limit)
	return report
}

func sortChatStandings(entries []ChatStanding, limit int) []ChatStanding {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].ChatID < entries[j].ChatID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortChatAverages(entries []ChatAverage, limit int) []ChatAverage {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average > entries[j].Average
		}
		return entries[i].ChatID < entries[j].ChatID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortChatTimestamps(entries []ChatTimestamp, ascending bool, limit int) []ChatTimestamp {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			if ascending {
				return entries[i].Timestamp < entries[j].Timestamp
			}
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ChatID < entries[j].ChatID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
