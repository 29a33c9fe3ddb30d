// Package stats computes chat and user statistics as pure functions
// over a snapshot of users and their recorded message histories. The
// functions never touch the store or the broker; callers load a
// snapshot first and aggregate in memory.
//
// Conventions shared by every aggregator: a message counts toward a
// language iff its top-ranked analysis entry names that language with
// probability above 0.5; a message matches a language filter iff any
// analysis entry names the language with probability above 0.5;
// timestamps are ISO strings compared lexically; rankings are sorted
// descending by metric with ascending user_id (or chat_id) breaking
// ties, so two runs over the same snapshot produce identical output.
package stats

import (
	"strconv"

	"langmod/server/backend/domain"
)

const topLanguageMinProb = 0.5

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// messagesOf returns a user's messages, restricted to one chat when
// chatID is non-empty.
func messagesOf(user domain.User, chatID string) []domain.ChatMessage {
	if chatID != "" {
		return user.ChatHistory[chatID]
	}
	var all []domain.ChatMessage
	for _, messages := range user.ChatHistory {
		all = append(all, messages...)
	}
	return all
}

// matchesLanguage reports whether the message's analysis contains lang
// above the counting threshold. An empty lang matches every message,
// analyzed or not.
func matchesLanguage(msg domain.ChatMessage, lang string) bool {
	if lang == "" {
		return true
	}
	for _, score := range msg.AnalysisResult {
		if score.Lang == lang && score.Prob > topLanguageMinProb {
			return true
		}
	}
	return false
}

func filterByLanguage(messages []domain.ChatMessage, lang string) []domain.ChatMessage {
	if lang == "" {
		return messages
	}
	var kept []domain.ChatMessage
	for _, msg := range messages {
		if matchesLanguage(msg, lang) {
			kept = append(kept, msg)
		}
	}
	return kept
}

// countedLanguage returns the language a message is attributed to for
// per-language counts: the top-ranked entry when its probability
// clears the threshold.
func countedLanguage(msg domain.ChatMessage) (string, bool) {
	top, ok := msg.TopLanguage()
	if !ok || top.Prob <= topLanguageMinProb {
		return "", false
	}
	return top.Lang, true
}

func totalLength(messages []domain.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += len([]rune(msg.Content))
	}
	return total
}

func averageLength(messages []domain.ChatMessage) float64 {
	if len(messages) == 0 {
		return 0.0
	}
	return float64(totalLength(messages)) / float64(len(messages))
}

// timestampRange returns the lexical min and max timestamps, with ok
// false for an empty slice.
func timestampRange(messages []domain.ChatMessage) (earliest, latest string, ok bool) {
	for _, msg := range messages {
		if !ok {
			earliest, latest, ok = msg.Timestamp, msg.Timestamp, true
			continue
		}
		if msg.Timestamp < earliest {
			earliest = msg.Timestamp
		}
		if msg.Timestamp > latest {
			latest = msg.Timestamp
		}
	}
	return earliest, latest, ok
}
