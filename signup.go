package auth

import (
	"context"
)

// SignUp registers a new account, provisions its profile, and signs it in.
//
// The profile is created explicitly right after registration instead of
// being left to the lazy path of the reconciliation, so the sign in that
// follows always finds a complete profile. Registration itself does not
// authenticate.
func (s *LifecycleService) SignUp(ctx context.Context, req SignUpRequest) error {
	if !s.Configured() {
		s.notifyFailure(ErrNotConfigured)
		return ErrNotConfigured
	}

	req = req.normalized()
	if err := req.Validate(s.config.GetMinPasswordLength()); err != nil {
		s.notifyFailure(err)
		return err
	}

	s.beginLoading()
	defer s.endLoading()

	metadata := map[string]any{MetadataDisplayName: req.DisplayName}
	if req.AvatarURL != "" {
		metadata[MetadataAvatarURL] = req.AvatarURL
	}

	registered, err := s.store.SignUp(ctx, req.Email, req.Password, metadata)
	if err != nil {
		return s.signUpFailed(ctx, req.Email, err)
	}

	identity := Identity{Email: req.Email, Metadata: metadata}
	if registered != nil {
		identity = registered.User
		if identity.Email == "" {
			identity.Email = req.Email
		}
		if identity.Metadata == nil {
			identity.Metadata = metadata
		}
	}

	if identity.ID == "" {
		s.logger.Warn("registration returned no user id, profile left to reconciliation", "email", req.Email)
	} else {
		s.provisionProfile(ctx, identity, s.defaultProfile(identity, req.DisplayName, req.AvatarURL))
	}

	session, err := s.store.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		return s.signUpFailed(ctx, req.Email, err)
	}

	if session == nil {
		session = &Session{User: identity}
	}
	s.reconcileNow(ctx, passTrigger{
		event:     SessionEventSignedIn,
		session:   session,
		operation: true,
	})

	s.logger.Info("signed up", "user_id", session.User.ID)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		UserID:    session.User.ID,
	})

	s.navigate(DestinationAuthenticated, "sign_up")
	return nil
}

func (s *LifecycleService) signUpFailed(ctx context.Context, email string, err error) error {
	authErr := translateSignUpError(err)
	s.logger.Warn("sign up failed", "email", email, "kind", AuthErrorKindOf(authErr), "error", err)
	s.notifyFailure(authErr)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignUpFailure,
		Metadata: map[string]any{
			"kind": string(AuthErrorKindOf(authErr)),
		},
	})
	return authErr
}

func translateSignUpError(err error) error {
	switch kind := ClassifyAuthError(err); kind {
	case AuthErrorWeakPassword:
		return newAuthError(kind, MessageWeakPassword, err)
	case AuthErrorInvalidEmail:
		return newAuthError(kind, MessageInvalidEmail, err)
	case AuthErrorAlreadyRegistered:
		return newAuthError(kind, MessageAlreadyRegistered, err)
	default:
		return newAuthError(AuthErrorUnknown, MessageSignUpFailed, err)
	}
}
