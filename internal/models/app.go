package models

// AppModel represents the UI state - only local UI concerns
type AppModel struct {
	Messages            []ChatMessage        // Current conversation transcript
	Input               string               // User input field
	Status              string               // Status bar text
	Loading             bool                 // A query stream is in flight
	Confirming          bool                 // A confirm stream is in flight
	Thinking            bool                 // Backend thinking indicator
	Width               int                  // Terminal width
	Height              int                  // Terminal height
	ServiceReady        bool                 // Whether the agent service is available
	SessionTitle        string               // Title of the active session
	PendingConfirmation *ConfirmationRequest // Current confirmation request
}

// InputDisabled reports whether the input surface should reject submissions.
// Only one exchange may be in flight per conversation.
func (m AppModel) InputDisabled() bool {
	return m.Loading || m.Confirming || m.PendingConfirmation != nil
}
