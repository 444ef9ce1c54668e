package natssink

import (
	"context"
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-garage-auth/activitymap"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "garage"

// Publisher is the subset of *nats.Conn used by the sink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Option configures a Sink.
type Option func(*Sink)

// WithSubjectPrefix sets the prefix of every published subject.
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) {
		if p := strings.Trim(prefix, ". "); p != "" {
			s.prefix = p
		}
	}
}

// WithNormalizeOptions customizes the normalized payload.
func WithNormalizeOptions(opts ...activitymap.Option) Option {
	return func(s *Sink) {
		s.normalize = append(s.normalize, opts...)
	}
}

// Sink publishes activity events to NATS, one subject per event type. The
// payload is the activitymap.Normalized form of the event.
type Sink struct {
	pub       Publisher
	conn      *nats.Conn
	prefix    string
	normalize []activitymap.Option
}

var _ auth.ActivitySink = (*Sink)(nil)

// New wraps an existing publisher.
func New(pub Publisher, opts ...Option) *Sink {
	s := &Sink{pub: pub, prefix: DefaultSubjectPrefix}
	if conn, ok := pub.(*nats.Conn); ok {
		s.conn = conn
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect dials url and returns a sink owning the connection.
func Connect(url string, opts ...Option) (*Sink, error) {
	conn, err := nats.Connect(url, nats.Name("garage-auth"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "connect to nats")
	}
	return New(conn, opts...), nil
}

// Subject returns the subject events of type eventType are published on.
func (s *Sink) Subject(eventType auth.ActivityEventType) string {
	return s.prefix + "." + string(eventType)
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(activitymap.Normalize(event, s.normalize...))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode activity event")
	}

	if err := s.pub.Publish(s.Subject(event.EventType), data); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "publish activity event").
			WithMetadata(map[string]any{"event": string(event.EventType)})
	}
	return nil
}

// Close drains the connection when the sink owns one.
func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
