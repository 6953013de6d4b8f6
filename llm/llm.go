package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

// Request carries one completion call. Messages are sent as-is, so callers
// build them in chronological order: system prompt first (if any), prior
// history oldest-to-newest, the new user turn last.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
