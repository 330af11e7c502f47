// Package telemetry exports pipeline traces as JSON lines to a local file.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rbright/speechcraft/internal/config"
	"github.com/rbright/speechcraft/internal/version"
)

const instrumentationName = "github.com/rbright/speechcraft"

// Runtime exposes the tracer and its shutdown hook.
type Runtime struct {
	Tracer   trace.Tracer
	Path     string
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans and closes the trace file.
func (r Runtime) Shutdown(ctx context.Context) error {
	if r.shutdown == nil {
		return nil
	}
	return r.shutdown(ctx)
}

// Disabled returns a runtime whose tracer records nothing.
func Disabled() Runtime {
	return Runtime{Tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
}

// Setup builds a tracer provider when telemetry is enabled.
func Setup(cfg config.TelemetryConfig, logger *slog.Logger) (Runtime, error) {
	if !cfg.Enable {
		return Disabled(), nil
	}

	path, err := resolvePath(cfg)
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create telemetry dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open telemetry file: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return Runtime{}, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "speechcraft"),
		attribute.String("service.version", version.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("telemetry initialized", slog.String("exporter", "stdout"), slog.String("path", path))
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return Runtime{Tracer: tp.Tracer(instrumentationName), Path: path, shutdown: shutdown}, nil
}

func resolvePath(cfg config.TelemetryConfig) (string, error) {
	if p := strings.TrimSpace(cfg.Path); p != "" {
		return p, nil
	}
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "traces.jsonl"), nil
}
