package service

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// RouterOption defines a functional configuration type for the Router.
type RouterOption func(*Router)

// WithExporter enables re-publishing of call transitions.
func WithExporter(e Exporter) RouterOption {
	return func(r *Router) {
		r.exporter = e
	}
}

func WithRecorder(rec Recorder) RouterOption {
	return func(r *Router) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracerProvider opens dispatch spans on tp instead of the no-op tracer.
func WithTracerProvider(tp trace.TracerProvider) RouterOption {
	return func(r *Router) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithFallbackPolicy sets the initial unresolvable-recipient policy. Unknown values are ignored.
func WithFallbackPolicy(policy string) RouterOption {
	return func(r *Router) {
		_ = r.SetFallbackPolicy(policy)
	}
}
