package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/eventbus"
	"github.com/polaris-ai/polaris-cli/internal/history"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

type stubTokens struct{}

func (stubTokens) AccessToken() (string, error) { return "tok", nil }

func (stubTokens) Refresh(context.Context) (string, error) { return "tok", nil }

func newTestService(t *testing.T, handler http.Handler) *AgentService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	apiClient := api.NewClient(server.URL, "user-1", stubTokens{}, logger)
	historyClient := history.NewClient(apiClient, logger)
	svc := NewAgentService(apiClient, historyClient, eventbus.NewEventBus(), logger, "")
	t.Cleanup(svc.cancel)
	return svc
}

func writeSSE(t *testing.T, w http.ResponseWriter, events ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		fmt.Fprintf(w, "data: %s\n\n", ev)
	}
}

// newExchange mirrors what processQuery does before the stream opens: an
// empty assistant message owned by a fresh accumulator.
func newExchange(svc *AgentService) *exchange {
	return &exchange{messageID: svc.state.AppendAssistantMessage()}
}

func lastMessage(t *testing.T, svc *AgentService) models.ChatMessage {
	t.Helper()
	messages := svc.state.Snapshot()
	require.NotEmpty(t, messages)
	return messages[len(messages)-1]
}

func TestContentEventsAccumulateInOrder(t *testing.T) {
	svc := newTestService(t, nil)
	ex := newExchange(svc)

	for _, text := range []string{"Hel", "lo ", "there"} {
		svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: text})
	}
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type:           api.EventMetadata,
		AgentsUsed:     []string{"calendar"},
		ProcessingTime: "1.2s",
	})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventDone})

	msg := lastMessage(t, svc)
	assert.Equal(t, "Hello there", msg.Content)
	assert.Equal(t, []string{"calendar"}, msg.AgentsUsed)
	assert.Equal(t, "1.2s", msg.ProcessingTime)
	assert.False(t, msg.Terminal())
}

func TestConfirmationRequestFreezesPreview(t *testing.T) {
	svc := newTestService(t, nil)
	ex := newExchange(svc)

	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: "Drafting the email..."})
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type:           api.EventConfirmationRequest,
		RequestID:      "r1",
		ToolName:       "send_email",
		AgentName:      "email",
		ActionType:     "send",
		PreviewContent: "To: sam@example.com\n\nHi Sam,",
	})

	msg := lastMessage(t, svc)
	assert.Equal(t, "To: sam@example.com\n\nHi Sam,", msg.Content)
	assert.True(t, msg.IsPendingConfirmation)
	require.NotNil(t, msg.ConfirmationData)
	assert.Equal(t, "r1", msg.ConfirmationData.RequestID)
	require.NotNil(t, svc.state.PendingConfirmation())

	// The stream's trailing events must not touch the frozen preview.
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: "late chunk"})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventDone})

	msg = lastMessage(t, svc)
	assert.Equal(t, "To: sam@example.com\n\nHi Sam,", msg.Content)
	assert.True(t, msg.IsPendingConfirmation)
}

func TestDoneFreezesMessage(t *testing.T) {
	svc := newTestService(t, nil)
	ex := newExchange(svc)

	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: "final answer"})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventDone})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: " stray chunk"})

	assert.Equal(t, "final answer", lastMessage(t, svc).Content)
}

func TestErrorEventFreezesMessage(t *testing.T) {
	svc := newTestService(t, nil)
	ex := newExchange(svc)

	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: "partial"})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventError, Error: "calendar agent unavailable"})
	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventContent, Text: "ignored"})

	msg := lastMessage(t, svc)
	assert.True(t, msg.IsError)
	assert.Equal(t, "calendar agent unavailable", msg.Content)
}

func TestErrorEventWithoutDetailUsesFallback(t *testing.T) {
	svc := newTestService(t, nil)
	ex := newExchange(svc)

	svc.handleStreamEvent(ex, api.StreamEvent{Type: api.EventError})

	msg := lastMessage(t, svc)
	assert.True(t, msg.IsError)
	assert.Equal(t, "Sorry, something went wrong while processing your request.", msg.Content)
}

func TestProcessQueryEndToEnd(t *testing.T) {
	var gotHistory []api.HistoryEntry

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/agent/query/stream", r.URL.Path)
		var body struct {
			Query               string             `json:"query"`
			ConversationHistory []api.HistoryEntry `json:"conversationHistory"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "what's on my calendar", body.Query)
		gotHistory = body.ConversationHistory

		writeSSE(t, w,
			`{"type":"thinking","status":"start"}`,
			`{"type":"content","text":"You have "}`,
			`{"type":"content","text":"two meetings."}`,
			`{"type":"thinking","status":"stop"}`,
			`{"type":"done"}`,
		)
	}))

	svc.state.AppendUserMessage("earlier question")
	svc.processQuery("what's on my calendar")

	require.Len(t, gotHistory, 1)
	assert.Equal(t, "earlier question", gotHistory[0].Content)

	messages := svc.state.Snapshot()
	require.Len(t, messages, 3)
	assert.Equal(t, models.RoleUser, messages[1].Role)
	assert.Equal(t, "what's on my calendar", messages[1].Content)
	assert.Equal(t, models.RoleAssistant, messages[2].Role)
	assert.Equal(t, "You have two meetings.", messages[2].Content)
	assert.False(t, svc.state.IsBusy())
}

func TestProcessQueryDroppedWhileConfirmationPending(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no requests expected")
	}))

	ex := newExchange(svc)
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type: api.EventConfirmationRequest, RequestID: "r1", PreviewContent: "preview",
	})

	svc.processQuery("another question")
	assert.Len(t, svc.state.Snapshot(), 1)
}

func TestConfirmFlow(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/agent/confirm/r1", r.URL.Path)
		writeSSE(t, w,
			`{"type":"content","text":"Email sent to Sam."}`,
			`{"type":"done"}`,
		)
	}))

	ex := newExchange(svc)
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type: api.EventConfirmationRequest, RequestID: "r1", PreviewContent: "To: sam@example.com",
	})

	svc.confirmAction("r1")

	messages := svc.state.Snapshot()
	require.Len(t, messages, 2)
	assert.True(t, messages[0].IsConfirmed)
	assert.False(t, messages[0].IsPendingConfirmation)
	assert.Equal(t, "To: sam@example.com", messages[0].Content)
	assert.Equal(t, "Email sent to Sam.", messages[1].Content)
	assert.Nil(t, svc.state.PendingConfirmation())
}

func TestConfirmUnknownRequestIsIgnored(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no requests expected")
	}))

	svc.confirmAction("nope")
	assert.Empty(t, svc.state.Snapshot())
}

func TestCancelFlowUsesRemoteAck(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/agent/cancel/r1", r.URL.Path)
		fmt.Fprint(w, `{"message":"Okay, I won't send it."}`)
	}))

	ex := newExchange(svc)
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type: api.EventConfirmationRequest, RequestID: "r1", PreviewContent: "preview",
	})

	svc.cancelAction("r1")

	messages := svc.state.Snapshot()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsCanceled)
	assert.Equal(t, "Okay, I won't send it.", messages[0].Content)
	assert.Nil(t, svc.state.PendingConfirmation())
}

func TestCancelFlowAppliesLocallyOnRemoteFailure(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal error"}`, http.StatusInternalServerError)
	}))

	ex := newExchange(svc)
	svc.handleStreamEvent(ex, api.StreamEvent{
		Type: api.EventConfirmationRequest, RequestID: "r1", PreviewContent: "preview",
	})

	svc.cancelAction("r1")

	messages := svc.state.Snapshot()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsCanceled)
	assert.Equal(t, "Action canceled.", messages[0].Content)
	assert.Nil(t, svc.state.PendingConfirmation())
}

func TestFlushSaveTitlesSessionOnce(t *testing.T) {
	var updates, renames int
	var title string

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat/sessions/s1/messages":
			updates++
		case "/api/chat/sessions/s1/rename":
			renames++
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			title = body["title"]
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"success":true}`)
	}))

	svc.state.SetSession("s1", "New Chat")
	svc.state.AppendUserMessage("plan my week")

	svc.flushSave()
	svc.flushSave()

	assert.Equal(t, 2, updates)
	assert.Equal(t, 1, renames)
	assert.Equal(t, "plan my week", title)
	assert.Equal(t, "plan my week", svc.state.SessionTitle())
}

func TestSaveSkippedWithoutSession(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no requests expected")
	}))

	svc.state.AppendUserMessage("hello")
	svc.flushSave()
}

func TestHistoryEntriesFiltering(t *testing.T) {
	entries := historyEntries([]models.ChatMessage{
		{Role: models.RoleUser, Content: "keep me"},
		{Role: models.RoleAssistant, Content: ""},
		{Role: models.RoleAssistant, Content: "oops", IsError: true},
		{Role: models.RoleAssistant, Content: "preview", IsPendingConfirmation: true},
		{Role: models.RoleAssistant, Content: "Action canceled.", IsCanceled: true},
		{Role: models.RoleAssistant, Content: "kept reply", IsConfirmed: true},
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "keep me", entries[0].Content)
	assert.Equal(t, "kept reply", entries[1].Content)
}

func TestBootstrapResumesSavedSession(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/chat/sessions/s9", r.URL.Path)
		resp := map[string]any{
			"success": true,
			"session": models.ChatSession{
				ID:    "s9",
				Title: "Trip planning",
				Messages: []models.ChatMessage{
					{ID: "m1", Role: models.RoleUser, Content: "plan a trip"},
					{ID: "m2", Role: models.RoleAssistant, Content: "Where to?"},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	svc.ResumeSession("s9")
	svc.bootstrapSession()

	assert.Equal(t, "s9", svc.state.SessionID())
	assert.Equal(t, "Trip planning", svc.state.SessionTitle())
	messages := svc.state.Snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "plan a trip", messages[0].Content)
	assert.True(t, svc.titleSet, "a resumed transcript must not be re-titled")
}

func TestBootstrapFallsBackToNewSessionWhenResumeFails(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"success":false,"message":"session not found"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/chat/sessions":
			fmt.Fprint(w, `{"success":true,"session":{"id":"fresh","title":"New Chat"}}`)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	svc.ResumeSession("gone")
	svc.bootstrapSession()

	assert.Equal(t, "fresh", svc.state.SessionID())
	assert.Empty(t, svc.state.Snapshot())
	assert.False(t, svc.titleSet)
}
