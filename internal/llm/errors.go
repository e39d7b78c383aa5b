package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go/v2"

	"github.com/aaronromeo/fittrack/internal/llm/provider"
)

// ErrGenerationUnavailable is the single condition every gateway failure collapses into.
var ErrGenerationUnavailable = errors.New("generation unavailable")

type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureStatus      FailureKind = "status"
	FailureCredentials FailureKind = "credentials"
	FailureShape       FailureKind = "shape"
	FailureTimeout     FailureKind = "timeout"
)

// UnavailableError records why a completion was not produced.
type UnavailableError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", ErrGenerationUnavailable, e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrGenerationUnavailable, e.Err} }

func classify(err error) FailureKind {
	var (
		se   *provider.StatusError
		oerr *openai.Error
		nerr net.Error
	)
	switch {
	case errors.Is(err, provider.ErrMissingCredentials):
		return FailureCredentials
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &se):
		return FailureStatus
	case errors.As(err, &oerr):
		if oerr.StatusCode == 401 {
			return FailureCredentials
		}
		return FailureStatus
	case errors.As(err, &nerr):
		if nerr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	case errors.Is(err, provider.ErrNoCandidate), errors.Is(err, provider.ErrMalformedResponse):
		return FailureShape
	default:
		return FailureNetwork
	}
}
