package components

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/polaris-ai/polaris-cli/internal/models"
	"github.com/polaris-ai/polaris-cli/ui/styles"
)

func RenderMessages(messages []models.ChatMessage, renderer *glamour.TermRenderer) string {
	var b strings.Builder

	userStyle := styles.UserStyle()
	assistantStyle := styles.AssistantStyle()
	errorStyle := styles.ErrorStyle()
	pendingStyle := styles.PendingStyle()
	canceledStyle := styles.CanceledStyle()
	metaStyle := styles.MetaStyle()

	for _, msg := range messages {
		switch {
		case msg.Role == models.RoleUser:
			b.WriteString(userStyle.Render("You: "+msg.Content) + "\n\n")

		case msg.IsError:
			b.WriteString(errorStyle.Render(msg.Content) + "\n\n")

		case msg.IsPendingConfirmation:
			b.WriteString(pendingStyle.Render(renderMarkdown(msg.Content, renderer)) + "\n\n")

		case msg.IsCanceled:
			b.WriteString(canceledStyle.Render("✗ "+msg.Content) + "\n\n")

		default:
			b.WriteString(assistantStyle.Render(renderMarkdown(msg.Content, renderer)) + "\n")
			if msg.IsConfirmed {
				b.WriteString(styles.ConfirmedBadgeStyle().Render("✓ approved") + "\n")
			}
			if meta := renderMeta(msg); meta != "" {
				b.WriteString(metaStyle.Render(meta) + "\n")
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderConfirmationPrompt shows the outstanding action awaiting approval.
func RenderConfirmationPrompt(req models.ConfirmationRequest, width int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants to run %s (%s)\n", req.AgentName, req.ToolName, req.ActionType)
	if req.Description != "" {
		b.WriteString(req.Description + "\n")
	}
	if len(req.Params) > 0 {
		if pretty, err := json.MarshalIndent(req.Params, "", "  "); err == nil {
			b.WriteString(string(pretty) + "\n")
		}
	}
	b.WriteString("Press (y) to approve or (n) to cancel")

	return styles.PendingStyle().Render(b.String()) + "\n"
}

func renderMarkdown(content string, renderer *glamour.TermRenderer) string {
	if renderer == nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func renderMeta(msg models.ChatMessage) string {
	var parts []string
	if len(msg.AgentsUsed) > 0 {
		parts = append(parts, "agents: "+strings.Join(msg.AgentsUsed, ", "))
	}
	if msg.ProcessingTime != "" {
		parts = append(parts, msg.ProcessingTime)
	}
	return strings.Join(parts, " · ")
}
