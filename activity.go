package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess    ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure    ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess    ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure    ActivityEventType = "auth.signup.failure"
	ActivityEventSignOut          ActivityEventType = "auth.signout"
	ActivityEventProfileProvision ActivityEventType = "profile.provisioned"
	ActivityEventProfileUpdated   ActivityEventType = "profile.updated"
	ActivityEventAvatarUpdated    ActivityEventType = "profile.avatar.updated"
	ActivityEventLifecycleReady   ActivityEventType = "lifecycle.ready"
	ActivityEventPassDiscarded    ActivityEventType = "lifecycle.pass.discarded"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink. All sinks run; the first error
// is returned.
func MultiSink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
