package update

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/polaris-ai/polaris-cli/internal/dispatcher"
	"github.com/polaris-ai/polaris-cli/internal/eventbus"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// HandleKeyMsgWithEventBus handles keyboard input using the event bus. While
// a confirmation is pending the input surface only accepts the y/n decision.
func HandleKeyMsgWithEventBus(appModel *models.AppModel, keyMsg tea.KeyMsg, eb *eventbus.EventBus, serviceReady bool) tea.Cmd {
	key := keyMsg.String()

	if appModel.PendingConfirmation != nil && !appModel.Confirming {
		return handleConfirmationKey(appModel, key, eb)
	}

	switch key {
	case "ctrl+c":
		return tea.Quit
	case "ctrl+n":
		if !appModel.Loading && !appModel.Confirming {
			if err := eb.SendToCore(eventbus.NewSessionEvent{}); err != nil {
				appModel.Status = "Error starting new chat: " + err.Error()
			}
		}
	case "enter":
		if strings.TrimSpace(appModel.Input) == "" {
			return nil
		}
		if !serviceReady {
			appModel.Input = ""
			appModel.Status = "Agent service not available"
			return nil
		}
		if appModel.InputDisabled() {
			appModel.Status = "Waiting for the current response to finish"
			return nil
		}
		if err := eb.SendToCore(eventbus.SendMessageEvent{Message: appModel.Input}); err != nil {
			appModel.Status = "Error sending message: " + err.Error()
			return nil
		}
		appModel.Input = ""
	case "backspace":
		if len(appModel.Input) > 0 {
			appModel.Input = appModel.Input[:len(appModel.Input)-1]
		}
	default:
		if len(keyMsg.Runes) > 0 && keyMsg.Type == tea.KeyRunes {
			appModel.Input += string(keyMsg.Runes)
		} else if key == " " {
			appModel.Input += " "
		}
	}
	return nil
}

// handleConfirmationKey routes the y/n decision for the pending action.
func handleConfirmationKey(appModel *models.AppModel, key string, eb *eventbus.EventBus) tea.Cmd {
	requestID := appModel.PendingConfirmation.RequestID

	switch key {
	case "ctrl+c":
		return tea.Quit
	case "y", "Y":
		if err := eb.SendToCore(eventbus.ConfirmActionEvent{RequestID: requestID}); err != nil {
			appModel.Status = "Error confirming action: " + err.Error()
		}
	case "n", "N", "esc":
		if err := eb.SendToCore(eventbus.CancelActionEvent{RequestID: requestID}); err != nil {
			appModel.Status = "Error canceling action: " + err.Error()
		}
	}
	return nil
}

// HandleCoreEvent processes events from the core
func HandleCoreEvent(appModel *models.AppModel, coreEventMsg dispatcher.CoreEventMsg) tea.Cmd {
	switch event := coreEventMsg.Event.(type) {
	case eventbus.StateUpdateEvent:
		appModel.Messages = event.Messages
		appModel.Loading = event.IsLoading
		appModel.Confirming = event.IsConfirming
		appModel.Thinking = event.Thinking
		appModel.SessionTitle = event.SessionTitle
		appModel.PendingConfirmation = event.PendingConfirmation

		switch {
		case event.Error != nil:
			appModel.Status = "Error: " + event.Error.Error()
		case event.PendingConfirmation != nil && !event.IsConfirming:
			appModel.Status = "Awaiting confirmation: (y) approve, (n) cancel"
		case event.IsConfirming:
			appModel.Status = "Executing action"
		case event.IsLoading:
			if event.Status != "" {
				appModel.Status = event.Status
			} else {
				appModel.Status = "Processing"
			}
		default:
			appModel.Status = "Ready"
		}
	}

	return nil
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
}
