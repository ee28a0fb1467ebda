package update

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/polaris-ai/polaris-cli/internal/dispatcher"
	"github.com/polaris-ai/polaris-cli/internal/eventbus"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

func HandleUpdateWithEventBus(appModel *models.AppModel, msg tea.Msg, eb *eventbus.EventBus, serviceReady bool) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return HandleKeyMsgWithEventBus(appModel, msg, eb, serviceReady)
	case tea.WindowSizeMsg:
		HandleWindowSizeMsg(appModel, msg)
		return nil
	case dispatcher.CoreEventMsg:
		return HandleCoreEvent(appModel, msg)
	}
	return nil
}
