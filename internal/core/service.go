package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/auth"
	"github.com/polaris-ai/polaris-cli/internal/eventbus"
	"github.com/polaris-ai/polaris-cli/internal/history"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// saveDebounce batches rapid successive state updates into one persistence
// call after a terminal stream event.
const saveDebounce = 800 * time.Millisecond

// AgentService runs the conversation: it owns the state, talks to the
// coordinator, and pushes snapshots to the UI over the event bus.
type AgentService struct {
	api     *api.Client
	history *history.Client
	state   *ConversationState
	bus     *eventbus.EventBus
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	legacyPath string
	resumeID   string

	saveMu    sync.Mutex
	saveTimer *time.Timer
	saving    atomic.Bool
	titleSet  bool

	lastError error
}

// NewAgentService wires the service. legacyPath points at the pre-remote
// conversation cache; empty disables migration.
func NewAgentService(apiClient *api.Client, historyClient *history.Client, eb *eventbus.EventBus, logger *zap.Logger, legacyPath string) *AgentService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AgentService{
		api:        apiClient,
		history:    historyClient,
		state:      NewConversationState(),
		bus:        eb,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		legacyPath: legacyPath,
	}
}

// ResumeSession makes Start open the given saved session instead of creating
// a fresh one. Must be called before Start.
func (s *AgentService) ResumeSession(id string) {
	s.resumeID = id
}

// Start bootstraps the session and runs the core loop in a goroutine.
func (s *AgentService) Start() {
	s.bootstrapSession()
	s.pushStateToUI()
	go s.eventLoop()
}

func (s *AgentService) Stop() {
	s.flushSave()
	s.cancel()
}

func (s *AgentService) eventLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.bus.UIToCore():
			if !ok {
				return
			}
			s.handleUIEvent(event)
		}
	}
}

func (s *AgentService) handleUIEvent(event eventbus.UIEvent) {
	switch e := event.(type) {
	case eventbus.SendMessageEvent:
		s.processQuery(e.Message)
	case eventbus.ConfirmActionEvent:
		s.confirmAction(e.RequestID)
	case eventbus.CancelActionEvent:
		s.cancelAction(e.RequestID)
	case eventbus.NewSessionEvent:
		s.startNewSession()
	}
}

// bootstrapSession migrates any legacy local conversation, then opens the
// requested saved session or creates a fresh one. Store failures degrade to
// an unsaved conversation; a failed resume falls back to a new session.
func (s *AgentService) bootstrapSession() {
	if s.legacyPath != "" {
		if err := s.history.MigrateLegacy(s.ctx, s.legacyPath); err != nil {
			s.logger.Warn("legacy conversation migration failed", zap.Error(err))
		}
	}

	if s.resumeID != "" {
		id := s.resumeID
		s.resumeID = ""
		if s.resumeSession(id) {
			return
		}
	}

	session, err := s.history.Create(s.ctx)
	if err != nil {
		s.logger.Error("failed to create chat session", zap.Error(err))
		s.lastError = err
		return
	}
	s.state.SetSession(session.ID, session.Title)
	s.titleSet = false
}

// resumeSession loads a saved transcript into the conversation. Reports
// whether the load succeeded.
func (s *AgentService) resumeSession(id string) bool {
	session, err := s.history.Get(s.ctx, id)
	if err != nil {
		s.logger.Warn("failed to open saved session, starting a new one",
			zap.String("session", id), zap.Error(err))
		return false
	}

	s.state.SetSession(session.ID, session.Title)
	s.state.ReplaceMessages(session.Messages)
	// A resumed session was titled on its first save.
	s.titleSet = history.FirstUserContent(session.Messages) != ""
	return true
}

// processQuery runs one query exchange end to end. Only one exchange may be
// in flight per conversation.
func (s *AgentService) processQuery(query string) {
	if s.state.IsBusy() || s.state.PendingConfirmation() != nil {
		s.logger.Warn("query dropped: exchange already in flight")
		return
	}

	conversationHistory := historyEntries(s.state.Snapshot())
	s.state.AppendUserMessage(query)
	s.state.SetLoading(true)
	s.lastError = nil
	s.pushStateToUI()

	ex := &exchange{messageID: s.state.AppendAssistantMessage()}
	err := s.api.QueryStream(s.ctx, query, conversationHistory, func(ev api.StreamEvent) {
		s.handleStreamEvent(ex, ev)
	})
	if err != nil {
		s.failExchange(ex, err)
	}

	s.state.SetLoading(false)
	s.state.SetThinking(false)
	s.pushStateToUI()
	s.scheduleSave()
}

// confirmAction executes the approved action: the frozen preview message
// flips to confirmed, and exactly one new assistant message accumulates the
// confirm stream.
func (s *AgentService) confirmAction(requestID string) {
	if s.state.IsBusy() {
		return
	}

	if _, ok := s.state.ConfirmPending(requestID); !ok {
		s.logger.Warn("confirm for unknown request", zap.String("requestId", requestID))
		return
	}
	s.state.SetConfirming(true)
	s.pushStateToUI()

	ex := &exchange{messageID: s.state.AppendAssistantMessage()}
	err := s.api.ConfirmStream(s.ctx, requestID, func(ev api.StreamEvent) {
		s.handleStreamEvent(ex, ev)
	})
	if err != nil {
		s.failExchange(ex, err)
	}

	s.state.SetConfirming(false)
	s.state.SetThinking(false)
	s.pushStateToUI()
	s.scheduleSave()
}

// cancelAction rejects the pending action. The local message flips to
// canceled even when the remote call fails, so the UI never gets stuck
// waiting on a confirmation that can no longer complete.
func (s *AgentService) cancelAction(requestID string) {
	ack, err := s.api.CancelAction(s.ctx, requestID)
	if err != nil {
		s.logger.Error("cancel request failed", zap.String("requestId", requestID), zap.Error(err))
		ack = ""
	}
	if ack == "" {
		ack = "Action canceled."
	}

	if !s.state.CancelPending(requestID, ack) {
		s.logger.Warn("cancel for unknown request", zap.String("requestId", requestID))
		return
	}
	s.pushStateToUI()
	s.scheduleSave()
}

// startNewSession persists the current conversation and begins a fresh one.
func (s *AgentService) startNewSession() {
	if s.state.IsBusy() {
		return
	}

	s.flushSave()
	s.state.Reset()
	s.bootstrapSession()
	s.pushStateToUI()
}

// failExchange converts a transport error into a terminal error message on
// the active assistant message.
func (s *AgentService) failExchange(ex *exchange, err error) {
	if ex.terminal {
		return
	}
	s.logger.Error("stream failed", zap.Error(err))
	s.state.MarkError(ex.messageID, userFacingError(err))
	s.lastError = err
	ex.terminal = true
}

func (s *AgentService) pushStateToUI() {
	loading, confirming, thinking, status := s.state.Flags()

	if err := s.bus.SendToUI(eventbus.StateUpdateEvent{
		Messages:            s.state.Snapshot(),
		IsLoading:           loading,
		IsConfirming:        confirming,
		Thinking:            thinking,
		Status:              status,
		SessionTitle:        s.state.SessionTitle(),
		PendingConfirmation: s.state.PendingConfirmation(),
		Error:               s.lastError,
	}); err != nil {
		s.logger.Warn("failed to push state to UI", zap.Error(err))
	}
}

// scheduleSave arms the debounced save, resetting the window on every call.
func (s *AgentService) scheduleSave() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(saveDebounce, s.saveNow)
}

// flushSave cancels any armed timer and saves synchronously.
func (s *AgentService) flushSave() {
	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveMu.Unlock()

	s.saveNow()
}

// saveNow persists the transcript. The guard keeps overlapping save attempts
// from racing on the same session; a skipped save is rescheduled by the next
// state change.
func (s *AgentService) saveNow() {
	if !s.saving.CompareAndSwap(false, true) {
		return
	}
	defer s.saving.Store(false)

	sessionID := s.state.SessionID()
	if sessionID == "" {
		return
	}

	messages := s.state.Snapshot()
	if err := s.history.Update(s.ctx, sessionID, messages); err != nil {
		s.logger.Error("failed to save session", zap.String("session", sessionID), zap.Error(err))
		return
	}

	if !s.titleSet {
		if first := history.FirstUserContent(messages); first != "" {
			title := history.GenerateTitle(first)
			if err := s.history.Rename(s.ctx, sessionID, title); err != nil {
				s.logger.Warn("failed to title session", zap.Error(err))
			} else {
				s.state.SetSessionTitle(title)
				s.titleSet = true
			}
		}
	}
}

// historyEntries converts prior completed turns to the wire shape sent with
// a query. Blank messages, frozen previews and synthetic cancellation
// acknowledgements are skipped.
func historyEntries(messages []models.ChatMessage) []api.HistoryEntry {
	entries := make([]api.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" || m.IsError || m.IsPendingConfirmation || m.IsCanceled {
			continue
		}
		entries = append(entries, api.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return entries
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, auth.ErrSessionExpired):
		return "Session expired. Please sign in again with `polaris login`."
	case errors.Is(err, auth.ErrAuthRequired):
		return "Authentication required. Run `polaris login` first."
	default:
		return "Connection error: " + err.Error()
	}
}
