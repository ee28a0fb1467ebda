package core

import (
	"strings"

	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// exchange accumulates the state of one in-flight stream (a query or a
// confirmed action). Each stream gets its own instance, owned by the event
// handler closure, so concurrent conversations could never share buffers.
type exchange struct {
	messageID      string
	content        strings.Builder
	agentsUsed     []string
	processingTime string

	// terminal is set once the exchange reached a state (confirmation
	// pending, error) that later events must not overwrite. The stream's
	// closing done event still arrives afterwards; it must be a no-op on
	// content.
	terminal bool
}

// handleStreamEvent interprets one stream event by its type discriminator.
// Events are handled strictly in arrival order.
func (s *AgentService) handleStreamEvent(ex *exchange, ev api.StreamEvent) {
	switch ev.Type {
	case api.EventThinking:
		s.state.SetThinking(ev.Status == api.ThinkingStart)

	case api.EventStatus:
		s.state.SetStatus(ev.Message)

	case api.EventAnalysis:
		// Informational only: which sub-agents the coordinator selected.
		s.logger.Debug("agents selected", zap.Strings("agents", ev.Agents))

	case api.EventContent:
		if ex.terminal {
			return
		}
		ex.content.WriteString(ev.Text)
		s.state.SetContent(ex.messageID, ex.content.String())

	case api.EventMetadata:
		ex.agentsUsed = ev.AgentsUsed
		ex.processingTime = ev.ProcessingTime

	case api.EventConfirmationRequest:
		if ex.terminal {
			return
		}
		req := &models.ConfirmationRequest{
			RequestID:      ev.RequestID,
			ToolName:       ev.ToolName,
			AgentName:      ev.AgentName,
			ActionType:     ev.ActionType,
			Description:    ev.Description,
			Params:         ev.Params,
			PreviewContent: ev.PreviewContent,
			OriginalQuery:  ev.OriginalQuery,
		}
		// The message freezes with the preview; no more content events are
		// expected until the user confirms or cancels.
		s.state.MarkPendingConfirmation(ex.messageID, req)
		ex.terminal = true

	case api.EventError:
		if ex.terminal {
			return
		}
		msg := ev.ErrorText()
		if msg == "" {
			msg = "Sorry, something went wrong while processing your request."
		}
		s.state.MarkError(ex.messageID, msg)
		s.state.SetThinking(false)
		ex.terminal = true

	case api.EventDone:
		if ex.terminal {
			return
		}
		s.state.FinalizeMessage(ex.messageID, ex.content.String(), ex.agentsUsed, ex.processingTime)
		s.state.SetThinking(false)
		s.state.SetStatus("")
		ex.terminal = true

	default:
		s.logger.Debug("ignoring unknown stream event", zap.String("type", ev.Type))
	}

	s.pushStateToUI()
}
