package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// DispatcherMiddleware implements [DECORATOR_PATTERN] to add observability
// to event routing without touching routing logic.
type DispatcherMiddleware struct {
	Next   Dispatcher
	Logger *slog.Logger
}

// NewDispatcherMiddleware creates a new logging decorator for the Dispatcher.
func NewDispatcherMiddleware(next Dispatcher, logger *slog.Logger) Dispatcher {
	return &DispatcherMiddleware{
		Next:   next,
		Logger: logger,
	}
}

// Dispatch wraps routing with execution timing and outcome logging.
func (m *DispatcherMiddleware) Dispatch(ctx context.Context, origin model.Connector, name string, data map[string]any) error {
	start := time.Now()

	err := m.Next.Dispatch(ctx, origin, name, data)

	duration := time.Since(start)
	attrs := []any{
		"event", name,
		"duration_ms", duration.Milliseconds(),
	}
	if origin != nil {
		attrs = append(attrs, "conn_id", origin.GetID())
	}

	switch {
	case err == nil:
		m.Logger.Debug("EVENT_DISPATCHED", attrs...)
	case errors.Is(err, model.ErrMissingEventName), errors.Is(err, model.ErrUnresolvableRecipient):
		// Client mistakes; the transport reports them back.
		m.Logger.Debug("EVENT_REJECTED", append(attrs, "err", err)...)
	default:
		m.Logger.Warn("EVENT_DISPATCH_FAILED", append(attrs, "err", err)...)
	}

	return err
}
