package history

import (
	"strings"
	"unicode/utf8"

	"github.com/polaris-ai/polaris-cli/internal/models"
)

const (
	maxTitleLen  = 50
	defaultTitle = "New Chat"
)

// GenerateTitle derives a display title from the first user message,
// truncating to 50 characters with an ellipsis.
func GenerateTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(title) <= maxTitleLen {
		return title
	}
	return string([]rune(title)[:maxTitleLen]) + "..."
}

// FirstUserContent returns the content of the earliest user message, the
// basis for a session title.
func FirstUserContent(messages []models.ChatMessage) string {
	for _, m := range messages {
		if m.Role == models.RoleUser {
			return m.Content
		}
	}
	return ""
}
