// Package history is the client for the coordinator's chat session store.
// The remote store is the source of truth; the in-memory conversation is a
// cache reconciled by re-fetching after mutations.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// Client wraps the shared transport with the session REST surface.
type Client struct {
	api    *api.Client
	logger *zap.Logger
}

func NewClient(apiClient *api.Client, logger *zap.Logger) *Client {
	return &Client{api: apiClient, logger: logger}
}

// envelope is the response wrapper shared by every session endpoint.
type envelope struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message,omitempty"`
	Session  *models.ChatSession  `json:"session,omitempty"`
	Sessions []models.ChatSession `json:"sessions,omitempty"`
}

func (e envelope) err(op string) error {
	if e.Success {
		return nil
	}
	if e.Message != "" {
		return fmt.Errorf("%s: %s", op, e.Message)
	}
	return errors.New(op + " failed")
}

// Create makes a new empty session.
func (c *Client) Create(ctx context.Context) (*models.ChatSession, error) {
	var env envelope
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/chat/sessions", struct{}{}, &env); err != nil {
		return nil, err
	}
	if err := env.err("create session"); err != nil {
		return nil, err
	}
	if env.Session == nil {
		return nil, errors.New("create session: empty response")
	}
	return env.Session, nil
}

// Get loads one session with its full message list.
func (c *Client) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	var env envelope
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	if err := env.err("get session"); err != nil {
		return nil, err
	}
	if env.Session == nil {
		return nil, errors.New("get session: empty response")
	}
	return env.Session, nil
}

// List fetches all sessions without message bodies.
func (c *Client) List(ctx context.Context) ([]models.ChatSession, error) {
	var env envelope
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/chat/sessions", nil, &env); err != nil {
		return nil, err
	}
	if err := env.err("list sessions"); err != nil {
		return nil, err
	}
	return env.Sessions, nil
}

type updatePayload struct {
	Messages []models.ChatMessage `json:"messages"`
}

// Update replaces the session's message list. Messages whose trimmed content
// is empty are never persisted.
func (c *Client) Update(ctx context.Context, id string, messages []models.ChatMessage) error {
	kept := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}

	var env envelope
	path := "/api/chat/sessions/" + url.PathEscape(id) + "/messages"
	if err := c.api.DoJSON(ctx, http.MethodPut, path, updatePayload{Messages: kept}, &env); err != nil {
		return err
	}
	return env.err("update session")
}

// Delete removes one session.
func (c *Client) Delete(ctx context.Context, id string) error {
	var env envelope
	if err := c.api.DoJSON(ctx, http.MethodDelete, "/api/chat/sessions/"+url.PathEscape(id), nil, &env); err != nil {
		return err
	}
	return env.err("delete session")
}

// Rename sets the session title.
func (c *Client) Rename(ctx context.Context, id, title string) error {
	var env envelope
	path := "/api/chat/sessions/" + url.PathEscape(id) + "/rename"
	if err := c.api.DoJSON(ctx, http.MethodPut, path, map[string]string{"title": title}, &env); err != nil {
		return err
	}
	return env.err("rename session")
}

// ClearAll deletes every session for the user.
func (c *Client) ClearAll(ctx context.Context) error {
	var env envelope
	if err := c.api.DoJSON(ctx, http.MethodDelete, "/api/chat/sessions", nil, &env); err != nil {
		return err
	}
	return env.err("clear sessions")
}
