package models

import "time"

// ChatSession is a remote conversation record. The coordinator owns the
// timestamps; UpdatedAt drives the recency buckets when sessions are listed.
type ChatSession struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	MessageCount int           `json:"messageCount"`
}
