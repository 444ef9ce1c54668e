package auth

import (
	"context"
)

type passTrigger struct {
	event   SessionEvent
	session *Session
	// fetch asks the pass to read the session from the store instead of
	// using the one carried by the notification.
	fetch bool
	// operation marks passes started by an explicit operation; those
	// navigate on their own.
	operation bool
}

type passResult struct {
	user *CurrentUser
	// keep leaves the current user untouched, used when the session lookup
	// itself failed.
	keep bool
}

func (s *LifecycleService) handleSessionChange(event SessionEvent, session *Session) {
	s.logger.Debug("session change", "event", event, "has_session", session != nil)

	var sess *Session
	if session != nil && event != SessionEventSignedOut {
		c := *session
		sess = &c
	}

	s.spawnPass(s.baseCtx, passTrigger{event: event, session: sess})
}

// beginPass tags a new pass with the next sequence number and cancels the
// pass it supersedes. It returns a nil context once the service is closed.
func (s *LifecycleService) beginPass(parent context.Context, trigger passTrigger) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, nil
	}
	if parent == nil {
		parent = s.baseCtx
	}
	if s.passCancel != nil {
		s.passCancel()
	}

	s.passSeq++
	ctx, cancel := context.WithCancel(parent)
	s.passCancel = cancel
	s.passTrigger = trigger
	return s.passSeq, ctx
}

// supersedePassLocked invalidates the pass in flight, if any, and returns
// its trigger so it can be run again against the current remote state.
// Callers hold s.mu.
func (s *LifecycleService) supersedePassLocked() (passTrigger, bool) {
	if s.passCancel == nil {
		return passTrigger{}, false
	}
	s.passCancel()
	s.passCancel = nil
	s.passSeq++
	return s.passTrigger, true
}

func (s *LifecycleService) spawnPass(parent context.Context, trigger passTrigger) {
	if parent == nil || parent.Err() != nil {
		parent = s.baseCtx
	}
	seq, ctx := s.beginPass(parent, trigger)
	if ctx == nil {
		return
	}
	go s.runPass(ctx, seq, trigger)
}

// reconcileNow runs a pass on the caller goroutine and returns once its
// result was applied or discarded.
func (s *LifecycleService) reconcileNow(ctx context.Context, trigger passTrigger) {
	seq, passCtx := s.beginPass(ctx, trigger)
	if passCtx == nil {
		return
	}
	s.runPass(passCtx, seq, trigger)
}

func (s *LifecycleService) runPass(ctx context.Context, seq uint64, trigger passTrigger) {
	session := trigger.session

	if trigger.fetch {
		current, err := s.store.GetCurrentSession(ctx)
		if err != nil {
			s.logger.Warn("session lookup failed, keeping current user", "pass", seq, "error", err)
			s.completePass(seq, trigger, passResult{keep: true})
			return
		}
		session = current
	}

	if session == nil {
		s.completePass(seq, trigger, passResult{})
		return
	}

	user := s.resolveUser(ctx, session.User)
	s.completePass(seq, trigger, passResult{user: user})
}

// completePass applies a pass result only when no newer pass was started
// meanwhile, so an older completion never overwrites fresher state.
func (s *LifecycleService) completePass(seq uint64, trigger passTrigger, result passResult) {
	s.mu.Lock()
	if s.closed || seq != s.passSeq {
		latest := s.passSeq
		s.mu.Unlock()

		s.logger.Debug("discarding superseded reconciliation pass", "pass", seq, "latest", latest, "event", trigger.event)
		s.recordActivity(s.baseCtx, ActivityEvent{
			EventType: ActivityEventPassDiscarded,
			Metadata: map[string]any{
				"pass":   seq,
				"latest": latest,
				"event":  string(trigger.event),
			},
		})
		return
	}

	var previousID string
	if s.user != nil {
		previousID = s.user.ID
	}
	if !result.keep {
		s.user = result.user
	}
	s.passCancel = nil
	s.passTrigger = passTrigger{}

	// a different account signing in is a new sign in, even without a
	// sign out in between
	if s.user != nil && previousID != "" && s.user.ID != previousID && s.lastDestination == DestinationAuthenticated {
		s.lastDestination = ""
	}

	var dest Destination
	if !trigger.operation {
		switch {
		case trigger.event == SessionEventSignedIn && s.user != nil:
			if s.claimDestinationLocked(DestinationAuthenticated) {
				dest = DestinationAuthenticated
			}
		case trigger.event == SessionEventSignedOut:
			if s.claimDestinationLocked(DestinationPublic) {
				dest = DestinationPublic
			}
		}
	}
	s.mu.Unlock()

	s.markReady(ReadinessReasonReconciled)
	s.publish()

	if dest != "" {
		s.emitNavigation(s.signalFor(dest, string(trigger.event)))
	}
}

// resolveUser loads the profile for identity, provisioning a default one
// when it is missing. It never fails: lookup problems degrade to a
// projection of the identity alone.
func (s *LifecycleService) resolveUser(ctx context.Context, identity Identity) *CurrentUser {
	profile, err := s.profiles.GetProfile(ctx, identity.ID)
	switch {
	case err == nil && profile != nil:
	case (err == nil && profile == nil) || IsProfileNotFound(err):
		profile = s.provisionProfile(ctx, identity, s.defaultProfile(identity, "", ""))
	default:
		s.logger.Warn("profile lookup failed, using identity metadata", "user_id", identity.ID, "error", err)
		profile = nil
	}
	return projectUser(identity, profile)
}

// provisionProfile stores record and returns the profile that ends up
// persisted. A concurrent creation wins over record.
func (s *LifecycleService) provisionProfile(ctx context.Context, identity Identity, record *ProfileRecord) *ProfileRecord {
	err := s.profiles.CreateProfile(ctx, record)
	switch {
	case err == nil:
		s.logger.Info("default profile created", "user_id", record.ID)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventProfileProvision,
			UserID:    record.ID,
		})
		return record
	case IsProfileExists(err):
		existing, gerr := s.profiles.GetProfile(ctx, identity.ID)
		if gerr == nil && existing != nil {
			return existing
		}
		s.logger.Warn("profile exists but could not be read back", "user_id", identity.ID, "error", gerr)
		return record
	default:
		s.logger.Error("failed to persist default profile, continuing with defaults", "user_id", identity.ID, "error", err)
		return record
	}
}

// defaultProfile builds the profile for a new identity. name and avatar
// override the identity metadata when not empty.
func (s *LifecycleService) defaultProfile(identity Identity, name, avatar string) *ProfileRecord {
	if name == "" {
		name = identity.MetadataString(MetadataDisplayName)
	}
	if name == "" {
		name = DisplayNameFromEmail(identity.Email)
	}
	if avatar == "" {
		avatar = identity.MetadataString(MetadataAvatarURL)
	}
	if avatar == "" {
		avatar = AvatarURLFor(s.config.GetAvatarServiceURL(), name)
	}

	now := s.now()
	return &ProfileRecord{
		ID:          identity.ID,
		DisplayName: name,
		AvatarURL:   avatar,
		Badges:      []string{s.config.GetDefaultBadge()},
		Stats:       ProfileStats{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func projectUser(identity Identity, profile *ProfileRecord) *CurrentUser {
	user := &CurrentUser{
		ID:        identity.ID,
		Email:     identity.Email,
		CreatedAt: identity.CreatedAt,
	}

	if profile != nil {
		user.DisplayName = profile.DisplayName
		user.AvatarURL = profile.AvatarURL
		user.Bio = profile.Bio
		user.Location = profile.Location
		user.Stats = profile.Stats
		if len(profile.Badges) > 0 {
			user.Badges = append([]string(nil), profile.Badges...)
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = profile.CreatedAt
		}
	}

	if user.DisplayName == "" {
		user.DisplayName = identity.MetadataString(MetadataDisplayName)
	}
	if user.DisplayName == "" {
		user.DisplayName = DisplayNameFromEmail(identity.Email)
	}
	if user.AvatarURL == "" {
		user.AvatarURL = identity.MetadataString(MetadataAvatarURL)
	}

	return user
}
