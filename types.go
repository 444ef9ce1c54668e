package auth

import (
	"context"
	"fmt"
)

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// SessionChangeHandler is invoked by a SessionStore whenever the
// authoritative session changes. session is nil for signed out events.
type SessionChangeHandler func(event SessionEvent, session *Session)

// Subscription is returned by SessionStore.OnSessionChange.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// SessionStore is the remote identity provider. GetCurrentSession returns
// nil, nil when nobody is signed in.
type SessionStore interface {
	GetCurrentSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error)
	SignOut(ctx context.Context) error
	UpdateMetadata(ctx context.Context, fields map[string]any) error
	OnSessionChange(handler SessionChangeHandler) (Subscription, error)
}

// ProfileRepository persists one ProfileRecord per user id.
//
// GetProfile must return an error matching IsProfileNotFound when there is
// no row, and CreateProfile must return an error matching IsProfileExists
// when a row for the same id is already stored.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*ProfileRecord, error)
	CreateProfile(ctx context.Context, record *ProfileRecord) error
	UpdateProfile(ctx context.Context, userID string, fields ProfileUpdate) error
}

// Notifier receives the user facing notices produced by failed operations.
type Notifier interface {
	Notify(notice Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(notice Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(notice Notice) {
	if f != nil {
		f(notice)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(Notice) {}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLine("[DBG] GARAGE ", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLine("[INF] GARAGE ", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLine("[WRN] GARAGE ", msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLine("[ERR] GARAGE ", msg, args...))
}

func formatLine(prefix, msg string, args ...any) string {
	line := prefix + msg
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			line += fmt.Sprintf(" %v", args[i])
		}
	}
	return line
}

// DefaultLogger returns the fallback logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

// ResolveLogger picks the logger for a named component. An explicit logger
// wins over the provider, and the provider wins over the default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		return provider, logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}
	return provider, defLogger{}
}
