package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_None(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Options{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_Unknown(t *testing.T) {
	t.Parallel()

	_, err := Setup(context.Background(), Options{Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

// Installs global providers, so not parallel.
func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Setup(ctx, Options{
		Exporter:       "stdout",
		ServiceName:    "invoice-dashboard",
		ServiceVersion: "test",
		Writer:         &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "invoices.add")
	span.End()

	require.NoError(t, shutdown(ctx))
	require.Contains(t, buf.String(), "invoices.add")
	require.Contains(t, buf.String(), "invoice-dashboard")
}
