package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a conversation transcript. Assistant messages
// are mutated while their stream is open; once a terminal flag (error,
// pending confirmation, confirmed, canceled) is set the message is frozen.
// The JSON shape matches what the coordinator stores and returns.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	AgentsUsed     []string `json:"agentsUsed,omitempty"`
	ProcessingTime string   `json:"processingTime,omitempty"`

	IsError               bool `json:"isError,omitempty"`
	IsPendingConfirmation bool `json:"isPendingConfirmation,omitempty"`
	IsConfirmed           bool `json:"isConfirmed,omitempty"`
	IsCanceled            bool `json:"isCanceled,omitempty"`

	// ConfirmationData is present only while IsPendingConfirmation is set.
	ConfirmationData *ConfirmationData `json:"confirmationData,omitempty"`
}

// Terminal reports whether the message reached a state that must not be
// overwritten by later stream events.
func (m ChatMessage) Terminal() bool {
	return m.IsError || m.IsPendingConfirmation || m.IsConfirmed || m.IsCanceled
}

// ConfirmationData is the subset of a confirmation request that stays on the
// frozen message after the stream pauses.
type ConfirmationData struct {
	RequestID   string `json:"requestId"`
	ToolName    string `json:"toolName"`
	AgentName   string `json:"agentName"`
	ActionType  string `json:"actionType"`
	Description string `json:"description"`
}

// ConfirmationRequest is the single outstanding approval request for a
// conversation. It is ephemeral: created when the stream pauses for user
// approval and destroyed when the user confirms or cancels.
type ConfirmationRequest struct {
	RequestID      string
	ToolName       string
	AgentName      string
	ActionType     string
	Description    string
	Params         map[string]any
	PreviewContent string
	OriginalQuery  string
}

// Data returns the persistable subset of the request.
func (r ConfirmationRequest) Data() *ConfirmationData {
	return &ConfirmationData{
		RequestID:   r.RequestID,
		ToolName:    r.ToolName,
		AgentName:   r.AgentName,
		ActionType:  r.ActionType,
		Description: r.Description,
	}
}
