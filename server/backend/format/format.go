// Package format renders aggregator reports into the message text
// carried on answer payloads. Output uses the bot transport's HTML
// subset (bold tags, tg://user links); delivery happens elsewhere.
package format

import (
	"fmt"
	"strings"

	"langmod/server/backend/domain"
	"langmod/server/backend/stats"
)

// FilterActions converts a per-language tally into the filter actions
// attached to top and ranking answers.
func FilterActions(counts []stats.LanguageCount) []domain.LanguageFilter {
	actions := make([]domain.LanguageFilter, 0, len(counts))
	for _, entry := range counts {
		actions = append(actions, domain.LanguageFilter{
			Code:        entry.Code,
			Count:       entry.Count,
			DisplayName: entry.DisplayName,
		})
	}
	return actions
}

func PersonalStats(report stats.PersonalStats) string {
	var b strings.Builder
	if report.ChatScoped {
		b.WriteString("📊 <b>Your Chat Statistics</b> 📊\n\n")
	} else {
		b.WriteString("📊 <b>Your Global Statistics</b> 📊\n\n")
		fmt.Fprintf(&b, "💬 <b>Chats:</b> %d\n", report.TotalChats)
	}
	fmt.Fprintf(&b, "📝 <b>Total Messages:</b> %d\n", report.TotalMessages)
	fmt.Fprintf(&b, "📏 <b>Total Message Length:</b> %d characters\n", report.TotalMessageLength)
	fmt.Fprintf(&b, "📊 <b>Average Message Length:</b> %.2f characters\n", report.AverageLength)
	writeLanguageTally(&b, report.LanguageCounts, report.TotalMessages)
	return b.String()
}

func ChatStats(report stats.ChatStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Chat Statistics</b> 📊\n\n")
	fmt.Fprintf(&b, "👥 <b>Members:</b> %d (%d with analyzed messages)\n", report.TotalMembers, report.MembersWithMessages)
	fmt.Fprintf(&b, "📝 <b>Total Messages:</b> %d\n", report.TotalMessages)
	fmt.Fprintf(&b, "📏 <b>Total Message Length:</b> %d characters\n", report.TotalMessageLength)
	fmt.Fprintf(&b, "🌐 <b>Languages Detected:</b> %d\n", report.UniqueLanguages)
	writeLanguageTally(&b, report.LanguageCounts, report.TotalMessages)
	return b.String()
}

func GlobalStats(report stats.GlobalStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Global Statistics</b> 📊\n\n")
	fmt.Fprintf(&b, "👥 <b>Users:</b> %d (%d with analyzed messages)\n", report.TotalUsers, report.UsersWithMessages)
	fmt.Fprintf(&b, "💬 <b>Chats:</b> %d\n", report.TotalChats)
	fmt.Fprintf(&b, "📝 <b>Total Messages:</b> %d\n", report.TotalMessages)
	fmt.Fprintf(&b, "📏 <b>Total Message Length:</b> %d characters\n", report.TotalMessageLength)
	fmt.Fprintf(&b, "🌐 <b>Languages Detected:</b> %d\n", report.UniqueLanguages)
	writeLanguageTally(&b, report.LanguageCounts, report.TotalMessages)

	if len(report.TopChats) > 0 {
		b.WriteString("\n💬 <b>Most Active Chats:</b>\n")
		for i, entry := range report.TopChats {
			fmt.Fprintf(&b, "%d. %s: %d messages\n", i+1, entry.ChatID, entry.Count)
		}
	}
	if len(report.TopUsers) > 0 {
		b.WriteString("\n👑 <b>Most Active Users:</b>\n")
		for i, entry := range report.TopUsers {
			fmt.Fprintf(&b, "%d. %s: %d messages\n", i+1, userLink(entry.UserID, entry.Name), entry.Count)
		}
	}
	return b.String()
}

func TopReport(report stats.TopReport) string {
	var b strings.Builder
	title := "Chat Top Statistics"
	if report.ChatID == "" {
		title = "Global Top Statistics"
	}
	if report.LanguageFilter != "" {
		fmt.Fprintf(&b, "📊 <b>%s</b> (%s messages only) 📊\n\n", title, stats.DisplayName(report.LanguageFilter))
	} else {
		fmt.Fprintf(&b, "📊 <b>%s</b> 📊\n\n", title)
	}

	b.WriteString("👑 <b>Most Messages:</b>\n")
	for i, entry := range report.MostMessages {
		fmt.Fprintf(&b, "%d. %s: %d messages\n", i+1, userLink(entry.UserID, entry.Name), entry.Count)
	}
	b.WriteString("\n📏 <b>Most Total Message Length:</b>\n")
	for i, entry := range report.MostLength {
		fmt.Fprintf(&b, "%d. %s: %d characters\n", i+1, userLink(entry.UserID, entry.Name), entry.Count)
	}
	b.WriteString("\n🕰️ <b>Earliest Messages:</b>\n")
	for i, entry := range report.EarliestMessages {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, userLink(entry.UserID, entry.Name), entry.Timestamp)
	}
	b.WriteString("\n🆕 <b>Latest Messages:</b>\n")
	for i, entry := range report.LatestMessages {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, userLink(entry.UserID, entry.Name), entry.Timestamp)
	}
	b.WriteString("\n📊 <b>Highest Average Message Length:</b>\n")
	for i, entry := range report.HighestAvgLength {
		fmt.Fprintf(&b, "%d. %s: %.2f characters\n", i+1, userLink(entry.UserID, entry.Name), entry.Average)
	}
	return b.String()
}

func ChatGlobalTop(report stats.ChatGlobalTop) string {
	var b strings.Builder
	if report.LanguageFilter != "" {
		fmt.Fprintf(&b, "📊 <b>Chat Rankings</b> (%s messages only) 📊\n\n", stats.DisplayName(report.LanguageFilter))
	} else {
		b.WriteString("📊 <b>Chat Rankings</b> 📊\n\n")
	}

	b.WriteString("👑 <b>Most Messages:</b>\n")
	for i, entry := range report.MostMessages {
		fmt.Fprintf(&b, "%d. %s: %d messages (%d users)\n", i+1, entry.ChatID, entry.Value, entry.UniqueUsers)
	}
	b.WriteString("\n📏 <b>Most Total Message Length:</b>\n")
	for i, entry := range report.MostLength {
		fmt.Fprintf(&b, "%d. %s: %d characters\n", i+1, entry.ChatID, entry.Value)
	}
	b.WriteString("\n👥 <b>Most Unique Users:</b>\n")
	for i, entry := range report.MostUniqueUsers {
		fmt.Fprintf(&b, "%d. %s: %d users\n", i+1, entry.ChatID, entry.Value)
	}
	if len(report.MostLanguages) > 0 {
		b.WriteString("\n🌐 <b>Most Languages:</b>\n")
		for i, entry := range report.MostLanguages {
			fmt.Fprintf(&b, "%d. %s: %d languages\n", i+1, entry.ChatID, entry.Value)
		}
	}
	b.WriteString("\n🕰️ <b>Earliest Activity:</b>\n")
	for i, entry := range report.EarliestActivity {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, entry.ChatID, entry.Timestamp)
	}
	b.WriteString("\n🆕 <b>Latest Activity:</b>\n")
	for i, entry := range report.LatestActivity {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, entry.ChatID, entry.Timestamp)
	}
	b.WriteString("\n📊 <b>Highest Average Message Length:</b>\n")
	for i, entry := range report.HighestAvgLength {
		fmt.Fprintf(&b, "%d. %s: %.2f characters\n", i+1, entry.ChatID, entry.Average)
	}
	return b.String()
}

func UserRanking(ranking stats.UserRanking, chatScoped bool) string {
	var b strings.Builder
	if chatScoped {
		b.WriteString("🏆 <b>Your Chat Ranking</b> 🏆\n\n")
	} else {
		b.WriteString("🏆 <b>Your Global Ranking</b> 🏆\n\n")
	}
	writeRankedCount(&b, "👑 Most Messages", ranking.MostMessages, "messages")
	writeRankedCount(&b, "📏 Most Total Message Length", ranking.MostLength, "characters")
	writeRankedTimestamp(&b, "🕰️ Earliest Message", ranking.EarliestMessage)
	writeRankedTimestamp(&b, "🆕 Latest Message", ranking.LatestMessage)
	writeRankedAverage(&b, "📊 Average Message Length", ranking.HighestAvgLength)
	return b.String()
}

func ChatRanking(ranking stats.ChatRanking) string {
	var b strings.Builder
	b.WriteString("🏆 <b>This Chat's Global Ranking</b> 🏆\n\n")
	writeRankedCount(&b, "👑 Most Messages", ranking.MostMessages, "messages")
	writeRankedCount(&b, "📏 Most Total Message Length", ranking.MostLength, "characters")
	writeRankedCount(&b, "👥 Most Unique Users", ranking.MostUniqueUsers, "users")
	writeRankedCount(&b, "🌐 Most Languages", ranking.MostLanguages, "languages")
	writeRankedTimestamp(&b, "🕰️ Earliest Activity", ranking.EarliestActivity)
	writeRankedTimestamp(&b, "🆕 Latest Activity", ranking.LatestActivity)
	writeRankedAverage(&b, "📊 Average Message Length", ranking.HighestAvgLength)
	return b.String()
}

func writeLanguageTally(b *strings.Builder, counts []stats.LanguageCount, totalMessages int) {
	if len(counts) == 0 {
		return
	}
	b.WriteString("\n🌐 <b>Messages by Language:</b>\n")
	for _, entry := range counts {
		percentage := 0.0
		if totalMessages > 0 {
			percentage = float64(entry.Count) / float64(totalMessages) * 100
		}
		fmt.Fprintf(b, "%s: <b>%d</b> messages (%.2f%%)\n", entry.DisplayName, entry.Count, percentage)
	}
}

func writeRankedCount(b *strings.Builder, label string, entry stats.RankedCount, unit string) {
	if entry.Position == 0 {
		fmt.Fprintf(b, "%s: not ranked\n", label)
		return
	}
	fmt.Fprintf(b, "%s: #%d (%d %s)\n", label, entry.Position, entry.Value, unit)
}

func writeRankedTimestamp(b *strings.Builder, label string, entry stats.RankedTimestamp) {
	if entry.Position == 0 {
		fmt.Fprintf(b, "%s: not ranked\n", label)
		return
	}
	fmt.Fprintf(b, "%s: #%d (%s)\n", label, entry.Position, entry.Value)
}

func writeRankedAverage(b *strings.Builder, label string, entry stats.RankedAverage) {
	if entry.Position == 0 {
		fmt.Fprintf(b, "%s: not ranked\n", label)
		return
	}
	fmt.Fprintf(b, "%s: #%d (%.2f characters)\n", label, entry.Position, entry.Value)
}

func userLink(userID int64, name string) string {
	return fmt.Sprintf("<a href='tg://user?id=%d'>%s</a>", userID, name)
}
