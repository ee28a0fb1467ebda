package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/polaris-ai/polaris-cli/internal/dispatcher"
	"github.com/polaris-ai/polaris-cli/internal/models"
	"github.com/polaris-ai/polaris-cli/internal/update"
	"github.com/polaris-ai/polaris-cli/ui/components"
)

// Model is the Bubble Tea model wrapping the UI state.
type Model struct {
	appModel   models.AppModel
	dispatcher *dispatcher.EventDispatcher
	spinner    spinner.Model
	renderer   *glamour.TermRenderer
}

func NewModel(appModel models.AppModel, disp *dispatcher.EventDispatcher) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		appModel:   appModel,
		dispatcher: disp,
		spinner:    sp,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.dispatcher.ListenForUIEvents(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatcher.CoreEventMsg:
		cmd := update.HandleCoreEvent(&m.appModel, msg)
		return m, tea.Batch(cmd, m.dispatcher.ListenForUIEvents())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		update.HandleWindowSizeMsg(&m.appModel, msg)
		// Rebuild the markdown renderer with the new wrap width.
		if renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-8, 20)),
		); err == nil {
			m.renderer = renderer
		}
		return m, nil
	}

	eventBus := m.dispatcher.GetEventBus()
	cmd := update.HandleUpdateWithEventBus(&m.appModel, msg, eventBus, m.appModel.ServiceReady)

	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(components.RenderMessages(m.appModel.Messages, m.renderer))
	if m.appModel.PendingConfirmation != nil && !m.appModel.Confirming {
		b.WriteString(components.RenderConfirmationPrompt(*m.appModel.PendingConfirmation, m.appModel.Width))
	}
	b.WriteString(components.RenderInput(m.appModel.Input, m.appModel.InputDisabled(), m.appModel.Width))
	b.WriteString("\n")

	busy := m.appModel.Loading || m.appModel.Confirming || m.appModel.Thinking
	b.WriteString(components.RenderStatus(m.appModel.Status, busy, m.spinner.View(), m.appModel.Width))

	return b.String()
}
