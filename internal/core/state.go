package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polaris-ai/polaris-cli/internal/models"
)

// ConversationState owns the transcript of the active session. It is the
// single source of truth the UI renders from; all mutation goes through it so
// the confirmation invariants hold:
//   - at most one assistant message is streaming at a time,
//   - at most one message is pending confirmation at a time,
//   - terminal flags (error/pending/confirmed/canceled) are mutually
//     exclusive and freeze the message.
type ConversationState struct {
	mu       sync.RWMutex
	messages []models.ChatMessage

	isLoading    bool
	isConfirming bool
	thinking     bool
	status       string

	pendingConfirmation *models.ConfirmationRequest

	sessionID    string
	sessionTitle string
}

func NewConversationState() *ConversationState {
	return &ConversationState{
		messages: make([]models.ChatMessage, 0),
	}
}

// Snapshot returns a copy of the transcript.
func (cs *ConversationState) Snapshot() []models.ChatMessage {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	result := make([]models.ChatMessage, len(cs.messages))
	copy(result, cs.messages)
	return result
}

// AppendUserMessage adds a user turn and returns its id.
func (cs *ConversationState) AppendUserMessage(content string) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	cs.messages = append(cs.messages, msg)
	return msg.ID
}

// AppendAssistantMessage adds an empty assistant message that the active
// stream will fill, and returns its id.
func (cs *ConversationState) AppendAssistantMessage() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Timestamp: time.Now(),
	}
	cs.messages = append(cs.messages, msg)
	return msg.ID
}

// SetContent replaces the content of the streaming message with the
// accumulated buffer. Frozen messages are left untouched.
func (cs *ConversationState) SetContent(id, content string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.indexLocked(id)
	if idx < 0 || cs.messages[idx].Terminal() {
		return
	}
	cs.messages[idx].Content = content
}

// FinalizeMessage records content and metadata at stream completion. If the
// message reached a terminal state in the meantime (a confirmation request
// arrived before the stream's closing event), content is left alone.
func (cs *ConversationState) FinalizeMessage(id, content string, agentsUsed []string, processingTime string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.indexLocked(id)
	if idx < 0 || cs.messages[idx].Terminal() {
		return
	}
	cs.messages[idx].Content = content
	cs.messages[idx].AgentsUsed = agentsUsed
	cs.messages[idx].ProcessingTime = processingTime
}

// MarkPendingConfirmation freezes the streaming message into the pending
// state: content is replaced by the preview, and the request becomes the
// single outstanding confirmation.
func (cs *ConversationState) MarkPendingConfirmation(id string, req *models.ConfirmationRequest) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.indexLocked(id)
	if idx < 0 || cs.messages[idx].Terminal() {
		return
	}
	cs.messages[idx].Content = req.PreviewContent
	cs.messages[idx].IsPendingConfirmation = true
	cs.messages[idx].ConfirmationData = req.Data()
	cs.pendingConfirmation = req
	cs.thinking = false
	cs.isLoading = false
}

// ConfirmPending flips the frozen message with the given request id to
// confirmed and clears the outstanding confirmation. It returns the message
// id and whether a matching pending message existed.
func (cs *ConversationState) ConfirmPending(requestID string) (string, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.pendingIndexLocked(requestID)
	if idx < 0 {
		return "", false
	}
	cs.messages[idx].IsPendingConfirmation = false
	cs.messages[idx].IsConfirmed = true
	cs.messages[idx].ConfirmationData = nil
	cs.pendingConfirmation = nil
	return cs.messages[idx].ID, true
}

// CancelPending flips the frozen message to canceled with the given
// acknowledgement text and clears the outstanding confirmation.
func (cs *ConversationState) CancelPending(requestID, ack string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.pendingIndexLocked(requestID)
	if idx < 0 {
		return false
	}
	cs.messages[idx].IsPendingConfirmation = false
	cs.messages[idx].IsCanceled = true
	cs.messages[idx].ConfirmationData = nil
	cs.messages[idx].Content = ack
	cs.pendingConfirmation = nil
	return true
}

// MarkError freezes the message as a terminal error. A message already
// pending, confirmed or canceled keeps that state.
func (cs *ConversationState) MarkError(id, message string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	idx := cs.indexLocked(id)
	if idx < 0 || cs.messages[idx].Terminal() {
		return
	}
	cs.messages[idx].Content = message
	cs.messages[idx].IsError = true
}

func (cs *ConversationState) PendingConfirmation() *models.ConfirmationRequest {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.pendingConfirmation
}

func (cs *ConversationState) SetLoading(loading bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.isLoading = loading
}

func (cs *ConversationState) SetConfirming(confirming bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.isConfirming = confirming
}

func (cs *ConversationState) SetThinking(thinking bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.thinking = thinking
}

func (cs *ConversationState) SetStatus(status string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.status = status
}

// IsBusy reports whether an exchange is in flight. New queries and confirms
// are rejected while busy.
func (cs *ConversationState) IsBusy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.isLoading || cs.isConfirming
}

// Flags returns the loading, confirming and thinking flags plus status text
// in one consistent read.
func (cs *ConversationState) Flags() (loading, confirming, thinking bool, status string) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.isLoading, cs.isConfirming, cs.thinking, cs.status
}

func (cs *ConversationState) SessionID() string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sessionID
}

func (cs *ConversationState) SessionTitle() string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sessionTitle
}

func (cs *ConversationState) SetSession(id, title string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sessionID = id
	cs.sessionTitle = title
}

func (cs *ConversationState) SetSessionTitle(title string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sessionTitle = title
}

// Reset clears the transcript for a fresh conversation.
func (cs *ConversationState) Reset() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.messages = cs.messages[:0]
	cs.pendingConfirmation = nil
	cs.isLoading = false
	cs.isConfirming = false
	cs.thinking = false
	cs.status = ""
	cs.sessionID = ""
	cs.sessionTitle = ""
}

// ReplaceMessages swaps in a transcript loaded from the remote store.
func (cs *ConversationState) ReplaceMessages(messages []models.ChatMessage) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.messages = make([]models.ChatMessage, len(messages))
	copy(cs.messages, messages)
	cs.pendingConfirmation = nil
}

func (cs *ConversationState) indexLocked(id string) int {
	for i := range cs.messages {
		if cs.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (cs *ConversationState) pendingIndexLocked(requestID string) int {
	for i := range cs.messages {
		m := &cs.messages[i]
		if m.IsPendingConfirmation && m.ConfirmationData != nil && m.ConfirmationData.RequestID == requestID {
			return i
		}
	}
	return -1
}
