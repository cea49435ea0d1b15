package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitialize_Disabled(t *testing.T) {
	tel, err := Initialize(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.Empty(t, tel.shutdowns)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_ShutdownJoinsErrors(t *testing.T) {
	calls := 0
	tel := &Telemetry{shutdowns: []func(context.Context) error{
		func(context.Context) error { calls++; return errors.New("traces") },
		func(context.Context) error { calls++; return nil },
		func(context.Context) error { calls++; return errors.New("metrics") },
	}}

	err := tel.Shutdown(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "traces")
	assert.Contains(t, err.Error(), "metrics")
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")

	res := sampler(0).ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background()})
	assert.Equal(t, sdktrace.Drop, res.Decision)
}
