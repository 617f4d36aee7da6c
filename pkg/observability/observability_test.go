package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// all recorders are safe no-ops without initialized instruments
	ctx := context.Background()
	p.RecordSessionStart(ctx)
	p.RecordSessionEnd(ctx)
	p.RecordError(ctx, errors.New("boom"))
	p.RecordPhase(ctx, "arbiter.evaluate_rules", time.Millisecond)

	_, done := p.TrackPhase(ctx, "arbiter.generate_verdict", attribute.String("tribune.session", "ARB-1"))
	done(nil)
	done(errors.New("late error")) // second call must not panic either

	assert.NoError(t, p.Shutdown(ctx))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "tribune-arbitration", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Enabled)
}
