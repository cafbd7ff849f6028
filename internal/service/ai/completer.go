package ai

import (
	"context"
	"errors"

	"github.com/sparkforge/spark-os/backend/internal/model/chat"
)

// ErrGenerationUnavailable collapses every completion failure: timeout,
// transport, quota, and empty or malformed responses.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Request is one generation call: the persona's system prompt, the bounded
// history and the new user message.
type Request struct {
	Directive string
	History   []chat.Turn
	Message   string
}

// Completer is an external text-generation backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
