package stats

import "langmod/server/backend/domain"

// RankedCount is a 1-based position in a count standing; Position 0
// means the target is absent from it.
type RankedCount struct {
	Position int
	Value    int
}

// RankedAverage is a 1-based position in an average standing.
type RankedAverage struct {
	Position int
	Value    float64
}

// RankedTimestamp is a 1-based position in a timestamp standing.
type RankedTimestamp struct {
	Position int
	Value    string
}

// UserRanking is one user's position in every user standing of a top
// report computed without a limit.
type UserRanking struct {
	MostMessages     RankedCount
	MostLength       RankedCount
	EarliestMessage  RankedTimestamp
	LatestMessage    RankedTimestamp
	HighestAvgLength RankedAverage
}

// ComputeUserRanking finds targetID's place among all users, within
// one chat (non-empty chatID) or globally, optionally language-scoped.
func ComputeUserRanking(users []domain.User, chatID, lang string, targetID int64) UserRanking {
	full := GenerateTopReport(users, chatID, lang, 0)
	var ranking UserRanking
	for i, entry := range full.MostMessages {
		if entry.UserID == targetID {
			ranking.MostMessages = RankedCount{Position: i + 1, Value: entry.Count}
			break
		}
	}
	for i, entry := range full.MostLength {
		if entry.UserID == targetID {
			ranking.MostLength = RankedCount{Position: i + 1, Value: entry.Count}
			break
		}
	}
	for i, entry := range full.EarliestMessages {
		if entry.UserID == targetID {
			ranking.EarliestMessage = RankedTimestamp{Position: i + 1, Value: entry.Timestamp}
			break
		}
	}
	for i, entry := range full.LatestMessages {
		if entry.UserID == targetID {
			ranking.LatestMessage = RankedTimestamp{Position: i + 1, Value: entry.Timestamp}
			break
		}
	}
	for i, entry := range full.HighestAvgLength {
		if entry.UserID == targetID {
			ranking.HighestAvgLength = RankedAverage{Position: i + 1, Value: entry.Average}
			break
		}
	}
	return ranking
}

// ChatRanking is one chat's position in every chat standing of a
// chat-global top computed without a limit.
type ChatRanking struct {
	MostMessages     RankedCount
	MostLength       RankedCount
	MostUniqueUsers  RankedCount
	MostLanguages    RankedCount
	EarliestActivity RankedTimestamp
	LatestActivity   RankedTimestamp
	HighestAvgLength RankedAverage
}

// ComputeChatRanking finds targetChatID's place among all chats,
// optionally language-scoped.
func ComputeChatRanking(users []domain.User, lang string, targetChatID string) ChatRanking {
	full := GenerateChatGlobalTop(users, lang, 0)
	var ranking ChatRanking
	for i, entry := range full.MostMessages {
		if entry.ChatID == targetChatID {
			ranking.MostMessages = RankedCount{Position: i + 1, Value: entry.Value}
			break
		}
	}
	for i, entry := range full.MostLength {
		if entry.ChatID == targetChatID {
			ranking.MostLength = RankedCount{Position: i + 1, Value: entry.Value}
			break
		}
	}
	for i, entry := range full.MostUniqueUsers {
		if entry.ChatID == targetChatID {
			ranking.MostUniqueUsers = RankedCount{Position: i + 1, Value: entry.Value}
			break
		}
	}
	for i, entry := range full.MostLanguages {
		if entry.ChatID == targetChatID {
			ranking.MostLanguages = RankedCount{Position: i + 1, Value: entry.Value}
			break
		}
	}
	for i, entry := range full.EarliestActivity {
		if entry.ChatID == targetChatID {
			ranking.EarliestActivity = RankedTimestamp{Position: i + 1, Value: entry.Timestamp}
			break
		}
	}
	for i, entry := range full.LatestActivity {
		if entry.ChatID == targetChatID {
			ranking.LatestActivity = RankedTimestamp{Position: i + 1, Value: entry.Timestamp}
			break
		}
	}
	for i, entry := range full.HighestAvgLength {
		if entry.ChatID == targetChatID {
			ranking.HighestAvgLength = RankedAverage{Position: i + 1, Value: entry.Average}
			break
		}
	}
	return ranking
}
