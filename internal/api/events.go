package api

// Stream event types emitted by the coordinator. Every line of the event
// stream carries one JSON object discriminated by "type".
const (
	EventThinking            = "thinking"
	EventStatus              = "status"
	EventAnalysis            = "analysis"
	EventContent             = "content"
	EventMetadata            = "metadata"
	EventConfirmationRequest = "confirmation_request"
	EventError               = "error"
	EventDone                = "done"
)

// Thinking status values.
const (
	ThinkingStart = "start"
	ThinkingStop  = "stop"
)

// StreamEvent is one decoded event from a query or confirm stream. Fields are
// populated according to Type; the rest stay zero.
type StreamEvent struct {
	Type string `json:"type"`

	// thinking: "start" or "stop".
	Status string `json:"status,omitempty"`
	// status: progress text. Also the error fallback field.
	Message string `json:"message,omitempty"`
	// analysis: agents selected for this query.
	Agents []string `json:"agents,omitempty"`
	// content: text to append to the active message.
	Text string `json:"text,omitempty"`
	// metadata: attached to the message on done.
	AgentsUsed     []string `json:"agentsUsed,omitempty"`
	ProcessingTime string   `json:"processingTime,omitempty"`
	// confirmation_request fields.
	RequestID      string         `json:"requestId,omitempty"`
	ToolName       string         `json:"toolName,omitempty"`
	AgentName      string         `json:"agentName,omitempty"`
	ActionType     string         `json:"actionType,omitempty"`
	Description    string         `json:"description,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	PreviewContent string         `json:"previewContent,omitempty"`
	OriginalQuery  string         `json:"originalQuery,omitempty"`
	// error detail; some backends use message instead.
	Error string `json:"error,omitempty"`
}

// ErrorText returns the error detail, preferring the dedicated field.
func (e StreamEvent) ErrorText() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
