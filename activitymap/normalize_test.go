package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-garage-auth/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSignIn(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventSignInSuccess,
		UserID:     "user-100",
		Metadata:   map[string]any{"email": "a@b.com"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventSignInSuccess), out.Verb)
	assert.Equal(t, "session", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "garage", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "a@b.com", out.Metadata["email"])
	assert.Equal(t, "auth", out.Metadata[activitymap.MetadataKeyCategory])
	assert.Equal(t, "success", out.Metadata[activitymap.MetadataKeyOutcome])
}

func TestNormalizeDoesNotMutateEventMetadata(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"fields": []string{"bio"}}
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventProfileUpdated,
		UserID:    "u1",
		Metadata:  meta,
	}

	out := activitymap.Normalize(event)
	out.Metadata["extra"] = true

	assert.Len(t, meta, 1)
	assert.Equal(t, "profile", out.ObjectType)
	assert.NotContains(t, out.Metadata, activitymap.MetadataKeyOutcome)
}

func TestNormalizeAnonymousLifecycleEvent(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(
		auth.ActivityEvent{EventType: auth.ActivityEventLifecycleReady},
		activitymap.WithDefaultChannel(" garage.dev "),
		activitymap.WithActorFallback("system"),
		activitymap.WithClock(func() time.Time { return fixed }),
	)

	assert.Equal(t, "system", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "lifecycle", out.ObjectType)
	assert.Equal(t, "garage.dev", out.Channel)
	assert.True(t, out.OccurredAt.Equal(fixed))
}

func TestObjectTypeFor(t *testing.T) {
	t.Parallel()

	cases := map[auth.ActivityEventType]string{
		auth.ActivityEventSignOut:         "session",
		auth.ActivityEventSignUpFailure:   "session",
		auth.ActivityEventAvatarUpdated:   "profile",
		auth.ActivityEventPassDiscarded:   "lifecycle",
		auth.ActivityEventType("billing"): "",
	}
	for eventType, want := range cases {
		assert.Equal(t, want, activitymap.ObjectTypeFor(eventType), string(eventType))
	}
}
