package stats

import (
	"sort"

	"langmod/server/backend/domain"
)

// UserAverage is one user's entry in an average-valued standing.
type UserAverage struct {
	UserID  int64
	Name    string
	Average float64
}

// UserTimestamp is one user's entry in a timestamp-valued standing.
// Timestamps are ISO strings and ordered lexically.
type UserTimestamp struct {
	UserID    int64
	Name      string
	Timestamp string
}

// TopReport ranks users against each other, either inside one chat or
// across all chats. When LanguageFilter is set every standing only
// counts messages matching that language; users with no matching
// messages keep zero-valued entries in the count standings but are
// dropped from the timestamp standings.
type TopReport struct {
	ChatID           string
	LanguageFilter   string
	MostMessages     []UserCount
	MostLength       []UserCount
	EarliestMessages []UserTimestamp
	LatestMessages   []UserTimestamp
	HighestAvgLength []UserAverage
	// TopLanguages is the per-language tally of the same message set,
	// carried on answers as filter actions.
	TopLanguages []LanguageCount
}

// GenerateTopReport builds the user standings. An empty chatID ranks
// across every chat; lang restricts the counted messages; limit caps
// each standing, with 0 meaning unlimited.
func GenerateTopReport(users []domain.User, chatID string, lang string, limit int) TopReport {
	report := TopReport{ChatID: chatID, LanguageFilter: lang}

	var counts, lengths []UserCount
	var earliest, latest []UserTimestamp
	var averages []UserAverage
	langCounts := map[string]int{}

	for _, user := range users {
		messages := filterByLanguage(messagesOf(user, chatID), lang)
		name := displayIdentity(user)

		counts = append(counts, UserCount{UserID: user.UserID, Name: name, Count: len(messages)})
		lengths = append(lengths, UserCount{UserID: user.UserID, Name: name, Count: totalLength(messages)})
		averages = append(averages, UserAverage{UserID: user.UserID, Name: name, Average: averageLength(messages)})
		if first, last, ok := timestampRange(messages); ok {
			earliest = append(earliest, UserTimestamp{UserID: user.UserID, Name: name, Timestamp: first})
			latest = append(latest, UserTimestamp{UserID: user.UserID, Name: name, Timestamp: last})
		}
		for _, msg := range messages {
			if code, ok := countedLanguage(msg); ok {
				langCounts[code]++
			}
		}
	}

	report.MostMessages = sortUserCounts(counts, limit)
	report.MostLength = sortUserCounts(lengths, limit)
	report.HighestAvgLength = sortUserAverages(averages, limit)
	report.EarliestMessages = sortUserTimestamps(earliest, true, limit)
	report.LatestMessages = sortUserTimestamps(latest, false, limit)
	report.TopLanguages = clipLanguageCounts(sortedLanguageCounts(langCounts), limit)
	return report
}

func sortUserAverages(entries []UserAverage, limit int) []UserAverage {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average > entries[j].Average
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortUserTimestamps(entries []UserTimestamp, ascending bool, limit int) []UserTimestamp {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			if ascending {
				return entries[i].Timestamp < entries[j].Timestamp
			}
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func clipLanguageCounts(entries []LanguageCount, limit int) []LanguageCount {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
