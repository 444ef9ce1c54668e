// Package promsink turns activity events into Prometheus metrics.
package promsink

import (
	"context"
	"time"

	auth "github.com/goliatone/go-garage-auth"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink counts activity events and observes the time to readiness.
type Sink struct {
	events *prometheus.CounterVec
	ready  prometheus.Histogram
}

var _ auth.ActivitySink = (*Sink)(nil)

// New creates a Sink and registers its metrics on reg.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garage_auth_events_total",
			Help: "Activity events recorded by the auth lifecycle, by type.",
		}, []string{"event"}),
		ready: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "garage_auth_ready_seconds",
			Help:    "Time from start until the auth lifecycle became ready.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),
	}

	reg.MustRegister(s.events, s.ready)
	return s
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()

	if event.EventType == auth.ActivityEventLifecycleReady {
		if elapsed, ok := elapsedFrom(event.Metadata); ok {
			s.ready.Observe(elapsed.Seconds())
		}
	}
	return nil
}

func elapsedFrom(metadata map[string]any) (time.Duration, bool) {
	switch v := metadata["elapsed_ms"].(type) {
	case int64:
		return time.Duration(v) * time.Millisecond, true
	case int:
		return time.Duration(v) * time.Millisecond, true
	case float64:
		return time.Duration(v * float64(time.Millisecond)), true
	default:
		return 0, false
	}
}
