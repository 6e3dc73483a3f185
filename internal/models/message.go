package models

import (
	"encoding/json"
	"time"
)

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable conversation turn about a document.
type Message struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Seq        int       `json:"seq"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CallLog records one chat call made against the LLM provider.
type CallLog struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	Temperature  float64         `json:"temperature"`
	MaxRetries   int             `json:"maxRetries"`
	Messages     json.RawMessage `json:"messages"`
	Result       json.RawMessage `json:"result"`
	IsSuccessful bool            `json:"isSuccessful"`
	IsRetried    bool            `json:"isRetried"`
	CreatedAt    time.Time       `json:"createdAt"`
}
