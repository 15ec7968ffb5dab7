package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "grove", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestStartSpanDisabled(t *testing.T) {
	ctx := context.Background()

	spanCtx, span := StartSpan(ctx, "cycle")
	require.NotNil(t, span)
	span.End()

	// Recording helpers must be safe with a no-op span.
	RecordError(spanCtx, errors.New("boom"))
	RecordError(spanCtx, nil)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	for _, pt := range []string{"cpu", "alloc_space", "goroutines", "mutex_count"} {
		_, err := parseProfileType(pt)
		assert.NoError(t, err, pt)
	}
	_, err := parseProfileType("heap")
	assert.Error(t, err)
}
