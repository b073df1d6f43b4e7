package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-signaling-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// ProvideLogVar exposes the runtime log level for hot reload.
func ProvideLogVar(cfg *config.Config) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(cfg.Log.Level))
	return lvl
}

func ProvideLogger(cfg *config.Config, lvl *slog.LevelVar) *slog.Logger {
	var handler slog.Handler
	if cfg.Log.Otel {
		// [OTEL_BRIDGE] Records go to the global OpenTelemetry LoggerProvider.
		handler = otelslog.NewHandler(ServiceName)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}

	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}

// ProvideTracerProvider registers the SDK tracer provider globally and flushes it on stop.
func ProvideTracerProvider(lc fx.Lifecycle) trace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
			attribute.String("service.namespace", ServiceNamespace),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}

// WatchLogLevel applies log.level changes from the config file.
func WatchLogLevel(cfg *config.Config, lvl *slog.LevelVar, logger *slog.Logger) {
	cfg.OnChange(logger, func(next *config.Config) {
		lvl.Set(parseLevel(next.Log.Level))
	})
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
