package provider

import (
	"context"
	"errors"
	"fmt"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash-latest"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

var (
	ErrMissingCredentials = errors.New("provider credentials not set")
	ErrNoCandidate        = errors.New("provider response has no candidate text")
	ErrMalformedResponse  = errors.New("provider response body is not the expected JSON")
)

// StatusError is a non-2xx reply from a provider endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Provider defines the minimal interface for LLM completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Validate() error
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion call. Zero Temperature/MaxTokens use the defaults.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

func (r Request) temperature() float64 {
	if r.Temperature <= 0 {
		return DefaultTemperature
	}
	return r.Temperature
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}
