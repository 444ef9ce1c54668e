package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-garage-auth"
)

const (
	// MetadataKeyCategory stores the leading segment of the event type.
	MetadataKeyCategory = "category"
	// MetadataKeyOutcome stores the trailing success/failure segment, when present.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel = "garage"
	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	userID := strings.TrimSpace(event.UserID)
	return Normalized{
		ActorID:    firstNonEmpty(userID, options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: ObjectTypeFor(event.EventType),
		ObjectID:   userID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// ObjectTypeFor maps an event type to the kind of object it acts on.
func ObjectTypeFor(eventType auth.ActivityEventType) string {
	switch category(eventType) {
	case "auth":
		return "session"
	case "profile":
		return "profile"
	case "lifecycle":
		return "lifecycle"
	default:
		return ""
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if c := strings.TrimSpace(channel); c != "" {
			opts.channel = c
		}
	}
}

// WithActorFallback sets the actor id used for events without a user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func category(eventType auth.ActivityEventType) string {
	head, _, _ := strings.Cut(string(eventType), ".")
	return head
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if c := category(event.EventType); c != "" {
		metadata[MetadataKeyCategory] = c
	}

	t := string(event.EventType)
	switch {
	case strings.HasSuffix(t, ".success"):
		metadata[MetadataKeyOutcome] = "success"
	case strings.HasSuffix(t, ".failure"):
		metadata[MetadataKeyOutcome] = "failure"
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
