package research

import (
	"strings"
	"unicode/utf8"
)

// truncate cuts s to at most limit characters without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func joinTagged(tag string, items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("<" + tag + ">\n")
		sb.WriteString(item)
		sb.WriteString("\n</" + tag + ">")
	}
	return sb.String()
}

// followUpQuery builds the query a branch recurses with.
func followUpQuery(goal string, questions []string) string {
	var sb strings.Builder
	sb.WriteString("Previous research goal: ")
	sb.WriteString(goal)
	sb.WriteString("\nFollow-up research directions:")
	for _, q := range questions {
		sb.WriteString("\n")
		sb.WriteString(q)
	}
	return strings.TrimSpace(sb.String())
}

func halfUp(n int) int {
	return (n + 1) / 2
}
