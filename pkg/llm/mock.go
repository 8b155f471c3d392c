package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockRule pairs a substring matcher with a canned reply. Rules are checked
// in order against the last user message; the first match wins.
type MockRule struct {
	Match   string
	Content string
	Err     error
}

// Mock is a scriptable Client for tests. Safe for concurrent use.
type Mock struct {
	mu       sync.Mutex
	rules    []MockRule
	fallback string
	calls    []Request
}

// NewMock creates a Mock with a default fallback reply.
func NewMock(rules ...MockRule) *Mock {
	return &Mock{rules: rules, fallback: "OK"}
}

// WithFallback sets the reply used when no rule matches.
func (m *Mock) WithFallback(content string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = content
	return m
}

// AddRule appends a rule.
func (m *Mock) AddRule(rule MockRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// Calls returns a copy of every request seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete matches the last user message against the scripted rules.
func (m *Mock) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	last := lastUserContent(req.Messages)
	for _, rule := range m.rules {
		if strings.Contains(strings.ToLower(last), strings.ToLower(rule.Match)) {
			if rule.Err != nil {
				return nil, rule.Err
			}
			return &Response{Content: rule.Content, Usage: Usage{TotalTokens: 1}}, nil
		}
	}
	if m.fallback == "" {
		return nil, fmt.Errorf("mock LLM: no rule matched %q", last)
	}
	return &Response{Content: m.fallback, Usage: Usage{TotalTokens: 1}}, nil
}

// Close implements Client.
func (m *Mock) Close() error { return nil }

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
