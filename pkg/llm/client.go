// Package llm is the boundary to the language-model capability. The rest of
// the system consumes it as an opaque "complete this conversation" service;
// nothing outside this package knows which provider is behind it.
package llm

import (
	"context"
)

// Message roles mirror the chat-completion convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// Request is one completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the language-model capability. Implementations must be safe for
// concurrent use; calls block and honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}
