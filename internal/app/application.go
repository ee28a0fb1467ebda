package app

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/auth"
	"github.com/polaris-ai/polaris-cli/internal/config"
	"github.com/polaris-ai/polaris-cli/internal/core"
	"github.com/polaris-ai/polaris-cli/internal/dispatcher"
	"github.com/polaris-ai/polaris-cli/internal/eventbus"
	"github.com/polaris-ai/polaris-cli/internal/history"
	"github.com/polaris-ai/polaris-cli/internal/logging"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// legacyHistoryFile is the pre-remote conversation cache migrated on startup.
const legacyHistoryFile = "history.db"

// Application manages the complete application lifecycle
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	eventBus   *eventbus.EventBus
	dispatcher *dispatcher.EventDispatcher
	service    *core.AgentService
	model      *Model
}

func NewApplication() (*Application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config directory: %w", err)
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, err := logging.NewFileLogger(dir, false)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewStore(dir, cfg.GetBaseURL(), logger)
	apiClient := api.NewClient(cfg.GetBaseURL(), cfg.GetUserID(), tokens, logger)
	historyClient := history.NewClient(apiClient, logger)

	eb := eventbus.NewEventBus()
	disp := dispatcher.NewEventDispatcher(eb)

	service := core.NewAgentService(apiClient, historyClient, eb, logger, filepath.Join(dir, legacyHistoryFile))

	model := NewModel(createInitialAppModel(cfg), disp)

	return &Application{
		config:     cfg,
		logger:     logger,
		eventBus:   eb,
		dispatcher: disp,
		service:    service,
		model:      model,
	}, nil
}

// ResumeSession opens the given saved session when the TUI starts. Must be
// called before Start.
func (app *Application) ResumeSession(id string) {
	app.service.ResumeSession(id)
}

func (app *Application) Start() error {
	app.service.Start()

	p := tea.NewProgram(app.model)
	_, err := p.Run()

	return err
}

func (app *Application) Stop() {
	app.service.Stop()
	app.dispatcher.Stop()
	app.eventBus.Close()
	_ = app.logger.Sync()
}

func createInitialAppModel(cfg *config.Config) models.AppModel {
	status := "Ready"
	if !cfg.IsValid() {
		status = "Profile not configured: run `polaris profile add <name>` and `polaris login`"
	}
	return models.AppModel{
		Messages:     make([]models.ChatMessage, 0),
		Status:       status,
		ServiceReady: cfg.IsValid(),
	}
}
