package auth

import (
	"context"
	"strings"
)

// SignIn authenticates with email and password. On success the
// CurrentUser is populated by the session change notification that
// follows; SignIn only guarantees that a reconciliation pass is on its way
// and schedules a fallback navigation to the authenticated landing.
func (s *LifecycleService) SignIn(ctx context.Context, email, password string) error {
	if !s.Configured() {
		s.notifyFailure(ErrNotConfigured)
		return ErrNotConfigured
	}

	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		s.notifyFailure(err)
		return err
	}

	s.beginLoading()
	defer s.endLoading()

	session, err := s.store.SignInWithPassword(ctx, email, password)
	if err != nil {
		authErr := translateSignInError(err)
		s.logger.Warn("sign in failed", "kind", AuthErrorKindOf(authErr), "error", err)
		s.notifyFailure(authErr)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Metadata: map[string]any{
				"kind": string(AuthErrorKindOf(authErr)),
			},
		})
		return authErr
	}

	var userID string
	if session != nil {
		userID = session.User.ID
	}
	s.logger.Info("signed in", "user_id", userID)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    userID,
	})

	s.scheduleNavigation(DestinationAuthenticated, "sign_in")
	return nil
}

func translateSignInError(err error) error {
	if ClassifyAuthError(err) == AuthErrorInvalidCredentials {
		return newAuthError(AuthErrorInvalidCredentials, MessageInvalidCredentials, err)
	}
	return newAuthError(AuthErrorUnknown, MessageSignInFailed, err)
}
