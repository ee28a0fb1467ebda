// Package api is the HTTP client for the coordinator backend: the streaming
// query/confirm endpoints and the chat session REST surface share its
// authentication and retry behavior.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/auth"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

// TokenSource supplies bearer tokens. Refresh is called at most once per
// request, after an unauthorized response.
type TokenSource interface {
	AccessToken() (string, error)
	Refresh(ctx context.Context) (string, error)
}

// HistoryEntry is one prior turn sent with a query.
type HistoryEntry struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Client issues authenticated requests against one coordinator backend.
// Streams stay open until the server closes them, so the underlying
// http.Client carries no timeout.
type Client struct {
	baseURL string
	userID  string
	tokens  TokenSource
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, userID string, tokens TokenSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		tokens:  tokens,
		http:    &http.Client{},
		logger:  logger,
	}
}

// do sends one request, refreshing the access token and retrying exactly once
// on an unauthorized response. A second unauthorized response is terminal.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	token, err := c.tokens.AccessToken()
	if err != nil {
		return nil, err
	}

	res, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}
	drain(res)

	token, err = c.tokens.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("retrying request after token refresh", zap.String("path", path))

	res, err = c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		drain(res)
		return nil, auth.ErrSessionExpired
	}
	return res, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-user-id", c.userID)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return res, nil
}

// DoJSON issues a request and decodes the JSON response into out, which may
// be nil when the body is irrelevant.
func (c *Client) DoJSON(ctx context.Context, method, path string, payload, out any) error {
	res, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer drain(res)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return responseError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// responseError extracts the backend's error message from a non-OK response.
func responseError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var detail struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		if detail.Message != "" {
			return fmt.Errorf("backend error: %s", detail.Message)
		}
		if detail.Error != "" {
			return fmt.Errorf("backend error: %s", detail.Error)
		}
	}
	return fmt.Errorf("backend returned %s", res.Status)
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	_ = res.Body.Close()
}
