package stats

import (
	"sort"

	"langmod/server/backend/domain"
)

// GlobalStats is the system-wide report across every user and chat.
type GlobalStats struct {
	TotalUsers         int
	UsersWithMessages  int
	TotalChats         int
	TotalMessages      int
	TotalMessageLength int
	UniqueLanguages    int
	LanguageCounts     []LanguageCount
	TopChats           []ChatCount
	TopUsers           []UserCount
}

// ChatCount is one chat's tally in a chat-keyed standing.
type ChatCount struct {
	ChatID string
	Count  int
}

// UserCount is one user's tally in a user-keyed standing.
type UserCount struct {
	UserID int64
	Name   string
	Count  int
}

const globalTopSlots = 10

func ComputeGlobalStats(users []domain.User) GlobalStats {
	report := GlobalStats{TotalUsers: len(users)}
	langCounts := map[string]int{}
	chatCounts := map[string]int{}
	var userCounts []UserCount

	for _, user := range users {
		userTotal := 0
		for chatID, messages := range user.ChatHistory {
			chatCounts[chatID] += len(messages)
			userTotal += len(messages)
			report.TotalMessageLength += totalLength(messages)
			for _, msg := range messages {
				if lang, ok := countedLanguage(msg); ok {
					langCounts[lang]++
				}
			}
		}
		if userTotal > 0 {
			report.UsersWithMessages++
		}
		report.TotalMessages += userTotal
		userCounts = append(userCounts, UserCount{UserID: user.UserID, Name: displayIdentity(user), Count: userTotal})
	}

	report.TotalChats = len(chatCounts)
	report.UniqueLanguages = len(langCounts)
	report.LanguageCounts = sortedLanguageCounts(langCounts)
	report.TopChats = sortedChatCounts(chatCounts, globalTopSlots)
	report.TopUsers = sortUserCounts(userCounts, globalTopSlots)
	return report
}

func sortedChatCounts(counts map[string]int, limit int) []ChatCount {
	out := make([]ChatCount, 0, len(counts))
	for chatID, count := range counts {
		out = append(out, ChatCount{ChatID: chatID, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ChatID < out[j].ChatID
	})
	return clipChatCounts(out, limit)
}

func sortUserCounts(counts []UserCount, limit int) []UserCount {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].UserID < counts[j].UserID
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func clipChatCounts(counts []ChatCount, limit int) []ChatCount {
	if limit > 0 && len(counts) > limit {
		return counts[:limit]
	}
	return counts
}

// displayIdentity prefers the user's name, then username, then the
// numeric id, matching how standings label entries.
func displayIdentity(user domain.User) string {
	if user.Name != "" {
		return user.Name
	}
	if user.Username != "" {
		return user.Username
	}
	return formatUserID(user.UserID)
}
