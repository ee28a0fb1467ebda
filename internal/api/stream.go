package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

type queryPayload struct {
	Query               string         `json:"query"`
	ConversationHistory []HistoryEntry `json:"conversationHistory"`
}

// QueryStream submits a query and invokes onEvent for every decoded stream
// event, in arrival order, until the server closes the stream.
func (c *Client) QueryStream(ctx context.Context, query string, history []HistoryEntry, onEvent func(StreamEvent)) error {
	if history == nil {
		history = []HistoryEntry{}
	}
	return c.stream(ctx, "/api/agent/query/stream", queryPayload{Query: query, ConversationHistory: history}, onEvent)
}

// ConfirmStream executes a previously previewed action. It reuses the query
// event vocabulary on a stream scoped to the confirmation request id.
func (c *Client) ConfirmStream(ctx context.Context, requestID string, onEvent func(StreamEvent)) error {
	return c.stream(ctx, "/api/agent/confirm/"+url.PathEscape(requestID), struct{}{}, onEvent)
}

// CancelAction aborts a pending confirmation. One-shot, not streamed; the
// returned message acknowledges the cancellation.
func (c *Client) CancelAction(ctx context.Context, requestID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.DoJSON(ctx, http.MethodPost, "/api/agent/cancel/"+url.PathEscape(requestID), struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) stream(ctx context.Context, path string, payload any, onEvent func(StreamEvent)) error {
	res, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return c.readEvents(res.Body, onEvent)
}

// readEvents decodes the SSE body into StreamEvents. A malformed event is
// logged and skipped; it never aborts the rest of the stream.
func (c *Client) readEvents(body io.Reader, onEvent func(StreamEvent)) error {
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			return fmt.Errorf("stream read failed: %w", err)
		}
		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("skipping malformed stream event",
				zap.String("data", data),
				zap.Error(err))
			continue
		}
		onEvent(event)
	}
	return nil
}
