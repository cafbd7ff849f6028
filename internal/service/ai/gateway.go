package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/model/chat"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
)

// GatewayOptions are fixed for the lifetime of a Gateway.
type GatewayOptions struct {
	// HistoryLimit bounds how many stored turns are sent, never how many are kept.
	HistoryLimit int
	Timeout      time.Duration
	// MaxRetries defaults to zero: a failed call degrades straight to the fallback.
	MaxRetries int
}

// DefaultGatewayOptions mirrors the configuration defaults.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{HistoryLimit: 6, Timeout: 30 * time.Second}
}

// Gateway wraps a Completer so that callers always receive usable text.
type Gateway struct {
	completer Completer
	opts      GatewayOptions
	logger    *zap.Logger
}

// NewGateway creates a gateway. A nil completer makes every call fall back.
func NewGateway(completer Completer, opts GatewayOptions, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit < 0 {
		opts.HistoryLimit = 0
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Gateway{completer: completer, opts: opts, logger: logger}
}

// Generate produces the persona's reply. It never fails: any backend error is
// logged and replaced by the persona's fallback reply.
func (g *Gateway) Generate(ctx context.Context, p persona.Persona, history []chat.Turn, message string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("completion panicked", zap.String("persona", p.ID), zap.Any("panic", r))
			reply = FallbackReply(p)
		}
	}()

	req := Request{
		Directive: BuildSystemPrompt(p),
		History:   boundHistory(history, g.opts.HistoryLimit),
		Message:   message,
	}

	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		text, err := g.complete(ctx, req)
		if err == nil {
			g.logger.Debug("generated response",
				zap.String("persona", p.ID),
				zap.Int("history", len(req.History)),
				zap.Int("length", len(text)))
			return ApplyAnchor(text, p.Anchor)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	g.logger.Warn("completion unavailable, using fallback",
		zap.String("persona", p.ID),
		zap.Error(lastErr))
	return FallbackReply(p)
}

func (g *Gateway) complete(ctx context.Context, req Request) (string, error) {
	if g.completer == nil {
		return "", fmt.Errorf("%w: no completion backend configured", ErrGenerationUnavailable)
	}

	callCtx := ctx
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	text, err := g.completer.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, ErrGenerationUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}
	return text, nil
}

// ApplyAnchor appends the anchor phrase on its own paragraph unless the text
// already ends with it.
func ApplyAnchor(text, anchor string) string {
	text = strings.TrimSpace(text)
	if anchor == "" || strings.HasSuffix(text, anchor) {
		return text
	}
	if text == "" {
		return anchor
	}
	return text + "\n\n" + anchor
}

// FallbackReply 生成失败时返回的角色兜底回复。
func FallbackReply(p persona.Persona) string {
	return ApplyAnchor(fmt.Sprintf("I'm having trouble connecting right now. Let me try again. –%s", p.Name), p.Anchor)
}

func boundHistory(history []chat.Turn, limit int) []chat.Turn {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	start := len(history) - limit
	if start < 0 {
		start = 0
	}
	return append([]chat.Turn(nil), history[start:]...)
}
