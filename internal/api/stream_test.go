package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/auth"
)

type stubTokens struct {
	token        string
	refreshed    string
	accessErr    error
	refreshErr   error
	refreshCalls int
}

func (s *stubTokens) AccessToken() (string, error) {
	if s.accessErr != nil {
		return "", s.accessErr
	}
	return s.token, nil
}

func (s *stubTokens) Refresh(context.Context) (string, error) {
	s.refreshCalls++
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	return s.refreshed, nil
}

func writeEvents(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, line := range lines {
		fmt.Fprintf(w, "data: %s\n\n", line)
	}
}

func TestQueryStreamDeliversEventsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/agent/query/stream", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "user-1", r.Header.Get("x-user-id"))

		writeEvents(w,
			`{"type":"thinking","status":"start"}`,
			`{"type":"status","message":"Routing query"}`,
			`{"type":"content","text":"Hello"}`,
			`{"type":"content","text":" world"}`,
			`{"type":"metadata","agentsUsed":["gmail"],"processingTime":"1.2s"}`,
			`{"type":"done"}`,
		)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user-1", &stubTokens{token: "tok"}, zap.NewNop())

	var events []StreamEvent
	err := client.QueryStream(context.Background(), "hi", nil, func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 6)
	assert.Equal(t, EventThinking, events[0].Type)
	assert.Equal(t, ThinkingStart, events[0].Status)
	assert.Equal(t, "Routing query", events[1].Message)
	assert.Equal(t, "Hello", events[2].Text)
	assert.Equal(t, " world", events[3].Text)
	assert.Equal(t, []string{"gmail"}, events[4].AgentsUsed)
	assert.Equal(t, EventDone, events[5].Type)
}

func TestQueryStreamSkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			`{"type":"content","text":"a"}`,
			`{this is not json`,
			`{"type":"content","text":"b"}`,
			`{"type":"done"}`,
		)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user-1", &stubTokens{token: "tok"}, zap.NewNop())

	var texts []string
	err := client.QueryStream(context.Background(), "hi", nil, func(ev StreamEvent) {
		if ev.Type == EventContent {
			texts = append(texts, ev.Text)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestQueryStreamRefreshesOnceOnUnauthorized(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEvents(w, `{"type":"done"}`)
	}))
	defer server.Close()

	tokens := &stubTokens{token: "stale", refreshed: "fresh"}
	client := NewClient(server.URL, "user-1", tokens, zap.NewNop())

	var done bool
	err := client.QueryStream(context.Background(), "hi", nil, func(ev StreamEvent) {
		done = ev.Type == EventDone
	})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, tokens.refreshCalls)
	assert.Equal(t, 2, calls)
}

func TestQueryStreamSecondUnauthorizedIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &stubTokens{token: "stale", refreshed: "still-stale"}
	client := NewClient(server.URL, "user-1", tokens, zap.NewNop())

	err := client.QueryStream(context.Background(), "hi", nil, func(StreamEvent) {
		t.Fatal("no events expected")
	})
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	assert.Equal(t, 1, tokens.refreshCalls, "exactly one refresh attempt")
}

func TestQueryStreamFailsWithoutToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "user-1", &stubTokens{accessErr: auth.ErrAuthRequired}, zap.NewNop())

	err := client.QueryStream(context.Background(), "hi", nil, func(StreamEvent) {})
	require.ErrorIs(t, err, auth.ErrAuthRequired)
}

func TestCancelAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/agent/cancel/r1", r.URL.Path)
		fmt.Fprint(w, `{"message":"Action canceled by user"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user-1", &stubTokens{token: "tok"}, zap.NewNop())

	msg, err := client.CancelAction(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Action canceled by user", msg)
}

func TestResponseErrorPrefersBackendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"success":false,"message":"coordinator offline"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user-1", &stubTokens{token: "tok"}, zap.NewNop())

	err := client.QueryStream(context.Background(), "hi", nil, func(StreamEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinator offline")
	assert.False(t, errors.Is(err, auth.ErrSessionExpired))
}
