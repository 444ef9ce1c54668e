package auth

import (
	"context"
)

// SignOut ends the current session. It is a no-op when the service is not
// configured, and a session that already ended is not an error.
func (s *LifecycleService) SignOut(ctx context.Context) error {
	if !s.Configured() {
		return nil
	}

	var userID string
	if u := s.CurrentUser(); u != nil {
		userID = u.ID
	}

	if err := s.store.SignOut(ctx); err != nil {
		if !IsSessionMissing(err) {
			terr := newTransientError(err, MessageSignOutFailed)
			s.logger.Error("sign out failed", "user_id", userID, "error", err)
			s.notifyFailure(terr)
			return terr
		}
		s.logger.Debug("session already ended", "user_id", userID)
	}

	s.reconcileNow(ctx, passTrigger{event: SessionEventSignedOut, operation: true})

	s.logger.Info("signed out", "user_id", userID)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		UserID:    userID,
	})

	s.navigate(DestinationPublic, "sign_out")
	return nil
}
