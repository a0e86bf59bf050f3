package tracer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"aihub/internal/domain"
	"aihub/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, ok := otel.GetTracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
}

func TestSetupExporters(t *testing.T) {
	for _, exp := range []string{"", "noop", "stdout"} {
		shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: exp})
		require.NoError(t, err, exp)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestSetupFileExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "file", Endpoint: path})
	require.NoError(t, err)

	ctx := domain.ContextWithRunID(context.Background(), "01HRUN")
	_, span := StartSpan(ctx, "environment.run")
	SetOK(span)
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "environment.run")
	assert.Contains(t, string(data), "01HRUN")

	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	ctx, span := StartSpan(context.Background(), "test-span")
	assert.NotNil(t, ctx)
	SetOK(span)
	RecordError(span, errors.New("test error"))
	span.End()

	assert.Equal(t, "key", string(StringAttr("key", "value").Key))
	assert.Equal(t, int64(42), IntAttr("count", 42).Value.AsInt64())
	assert.True(t, BoolAttr("done", true).Value.AsBool())
}
