package auth

import (
	"context"
	"strings"
)

// UpdateProfile writes the given fields to the profile of the current user.
// Fields left nil keep the current values. It returns false, without an
// error, when nobody is signed in or the remote write failed; failures are
// reported through the Notifier.
func (s *LifecycleService) UpdateProfile(ctx context.Context, update ProfileUpdate) bool {
	current := s.CurrentUser()
	if current == nil {
		s.logger.Debug("profile update skipped, no current user")
		return false
	}
	if !s.Configured() {
		s.notifyFailure(ErrNotConfigured)
		return false
	}

	if update.DisplayName != nil && strings.TrimSpace(*update.DisplayName) == "" {
		update.DisplayName = nil
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		update.DisplayName = &name
		if err := s.store.UpdateMetadata(ctx, map[string]any{MetadataDisplayName: name}); err != nil {
			s.profileUpdateFailed(current.ID, err)
			return false
		}
	}

	merged := mergeProfileUpdate(current, update)
	if err := s.writeProfile(ctx, current, merged); err != nil {
		s.profileUpdateFailed(current.ID, err)
		return false
	}

	s.applyToCurrentUser(current.ID, merged)
	s.logger.Info("profile updated", "user_id", current.ID)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    current.ID,
		Metadata:  map[string]any{"fields": changedFields(update)},
	})
	return true
}

// UpdateAvatar stores a new avatar URL for the current user. Unlike
// UpdateProfile it returns the failure, so upload flows can remove the
// object they stored.
func (s *LifecycleService) UpdateAvatar(ctx context.Context, avatarURL string) error {
	current := s.CurrentUser()
	if current == nil {
		return ErrNoCurrentUser
	}
	if !s.Configured() {
		s.notifyFailure(ErrNotConfigured)
		return ErrNotConfigured
	}

	update := ProfileUpdate{AvatarURL: &avatarURL}
	if err := s.profiles.UpdateProfile(ctx, current.ID, update); err != nil {
		terr := newTransientError(err, MessageAvatarFailed).
			WithMetadata(map[string]any{"user_id": current.ID})
		s.logger.Error("avatar update failed", "user_id", current.ID, "error", err)
		s.notifyFailure(terr)
		return terr
	}

	s.applyToCurrentUser(current.ID, update)
	s.logger.Info("avatar updated", "user_id", current.ID)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAvatarUpdated,
		UserID:    current.ID,
	})
	return nil
}

// writeProfile updates the stored profile, recreating it from the current
// user when the row went missing.
func (s *LifecycleService) writeProfile(ctx context.Context, current *CurrentUser, merged ProfileUpdate) error {
	err := s.profiles.UpdateProfile(ctx, current.ID, merged)
	if err == nil || !IsProfileNotFound(err) {
		return err
	}

	s.logger.Warn("profile missing on update, recreating", "user_id", current.ID)
	now := s.now()
	record := &ProfileRecord{
		ID:          current.ID,
		DisplayName: *merged.DisplayName,
		AvatarURL:   *merged.AvatarURL,
		Bio:         *merged.Bio,
		Location:    *merged.Location,
		Badges:      current.Badges,
		Stats:       current.Stats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(record.Badges) == 0 {
		record.Badges = []string{s.config.GetDefaultBadge()}
	}

	if err := s.profiles.CreateProfile(ctx, record); err != nil {
		if IsProfileExists(err) {
			return s.profiles.UpdateProfile(ctx, current.ID, merged)
		}
		return err
	}
	return nil
}

func (s *LifecycleService) profileUpdateFailed(userID string, err error) {
	terr := newTransientError(err, MessageProfileFailed).
		WithMetadata(map[string]any{"user_id": userID})
	s.logger.Error("profile update failed", "user_id", userID, "error", err)
	s.notifyFailure(terr)
}

// applyToCurrentUser copies the set fields of update into the current user
// if it still belongs to userID. A pass still in flight may have read the
// profile before this write, so it is superseded and run again.
func (s *LifecycleService) applyToCurrentUser(userID string, update ProfileUpdate) {
	s.mu.Lock()
	if s.user == nil || s.user.ID != userID {
		s.mu.Unlock()
		return
	}
	rerun, superseded := s.supersedePassLocked()
	if update.DisplayName != nil {
		s.user.DisplayName = *update.DisplayName
	}
	if update.AvatarURL != nil {
		s.user.AvatarURL = *update.AvatarURL
	}
	if update.Bio != nil {
		s.user.Bio = *update.Bio
	}
	if update.Location != nil {
		s.user.Location = *update.Location
	}
	s.mu.Unlock()

	s.publish()
	if superseded {
		s.logger.Debug("profile write superseded reconciliation pass, running it again", "user_id", userID, "event", rerun.event)
		s.spawnPass(s.baseCtx, rerun)
	}
}

func mergeProfileUpdate(current *CurrentUser, update ProfileUpdate) ProfileUpdate {
	return ProfileUpdate{
		DisplayName: pickString(update.DisplayName, current.DisplayName),
		AvatarURL:   pickString(update.AvatarURL, current.AvatarURL),
		Bio:         pickString(update.Bio, current.Bio),
		Location:    pickString(update.Location, current.Location),
	}
}

func pickString(value *string, fallback string) *string {
	if value != nil {
		v := *value
		return &v
	}
	return &fallback
}

func changedFields(update ProfileUpdate) []string {
	fields := []string{}
	if update.DisplayName != nil {
		fields = append(fields, "display_name")
	}
	if update.AvatarURL != nil {
		fields = append(fields, "avatar_url")
	}
	if update.Bio != nil {
		fields = append(fields, "bio")
	}
	if update.Location != nil {
		fields = append(fields, "location")
	}
	return fields
}
