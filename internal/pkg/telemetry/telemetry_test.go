package telemetry

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_NoneExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{Exporter: "none"}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSQSAttributes_RoundTrip(t *testing.T) {
	_, err := Init(context.Background(), config.TelemetryConfig{Exporter: "none"}, "test")
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	attrs := map[string]types.MessageAttributeValue{}
	InjectSQSAttributes(ctx, attrs)
	require.Contains(t, attrs, "traceparent")

	extracted := ExtractSQSAttributes(context.Background(), attrs)
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}
