// Package telemetry installs the global OpenTelemetry tracer and meter
// providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gitlab.com/yelinaung/invoice-dashboard/internal/config"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
)

// ProtocolGRPC selects the OTLP gRPC exporters; anything else uses
// http/protobuf.
const ProtocolGRPC = "grpc"

// Options selects the exporters.
type Options struct {
	Exporter       string // none, stdout or otlp
	Protocol       string // http/protobuf or grpc, for otlp
	ServiceName    string
	ServiceVersion string
	// Writer receives stdout exports. Defaults to os.Stdout.
	Writer io.Writer
}

// Shutdown flushes and stops the providers.
type Shutdown func(context.Context) error

// Setup installs global providers for opts. With the none exporter the
// global no-op providers stay in place.
func Setup(ctx context.Context, opts Options) (Shutdown, error) {
	noop := func(context.Context) error { return nil }

	if opts.Exporter == "" || opts.Exporter == config.ExporterNone {
		return noop, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	traceExp, metricExp, err := exporters(ctx, opts)
	if err != nil {
		return noop, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Log.Info().
		Str("exporter", opts.Exporter).
		Str("protocol", opts.Protocol).
		Msg("Telemetry enabled")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func exporters(ctx context.Context, opts Options) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch opts.Exporter {
	case config.ExporterStdout:
		te, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return te, me, nil

	case config.ExporterOTLP:
		if opts.Protocol == ProtocolGRPC {
			te, err := otlptracegrpc.New(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create otlp grpc trace exporter: %w", err)
			}
			me, err := otlpmetricgrpc.New(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create otlp grpc metric exporter: %w", err)
			}
			return te, me, nil
		}
		te, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otlp http trace exporter: %w", err)
		}
		me, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otlp http metric exporter: %w", err)
		}
		return te, me, nil
	}

	return nil, nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
}
