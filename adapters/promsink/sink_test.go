package promsink

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-garage-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCountsEventsByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInSuccess}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInSuccess}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignOut}))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.events.WithLabelValues(string(auth.ActivityEventSignInSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(string(auth.ActivityEventSignOut))))
}

func TestRecordObservesReadiness(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLifecycleReady,
		Metadata:  map[string]any{"elapsed_ms": int64(250)},
	}))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "garage_auth_ready_seconds" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(1), h.GetSampleCount())
		assert.InDelta(t, 0.25, h.GetSampleSum(), 0.0001)
	}
	assert.True(t, found)
}

func TestElapsedFrom(t *testing.T) {
	_, ok := elapsedFrom(nil)
	assert.False(t, ok)

	d, ok := elapsedFrom(map[string]any{"elapsed_ms": 1500})
	require.True(t, ok)
	assert.Equal(t, 1.5, d.Seconds())
}
