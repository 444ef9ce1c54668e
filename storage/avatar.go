package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/google/uuid"
)

// AvatarTarget is the part of the lifecycle service the uploader needs.
type AvatarTarget interface {
	CurrentUser() *auth.CurrentUser
	UpdateAvatar(ctx context.Context, avatarURL string) error
}

// AvatarUploader stores avatar images and points the current user profile
// at them.
type AvatarUploader struct {
	store  ObjectStore
	target AvatarTarget
	logger auth.Logger
	newID  func() string
}

// AvatarOption configures an AvatarUploader.
type AvatarOption func(*AvatarUploader)

// WithAvatarLogger sets the uploader logger.
func WithAvatarLogger(logger auth.Logger) AvatarOption {
	return func(u *AvatarUploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithAvatarLoggerProvider resolves the uploader logger from provider.
func WithAvatarLoggerProvider(provider auth.LoggerProvider) AvatarOption {
	return func(u *AvatarUploader) {
		_, u.logger = auth.ResolveLogger("garage.avatars", provider, nil)
	}
}

// NewAvatarUploader creates an uploader.
func NewAvatarUploader(store ObjectStore, target AvatarTarget, opts ...AvatarOption) *AvatarUploader {
	u := &AvatarUploader{
		store:  store,
		target: target,
		logger: auth.DefaultLogger(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// Upload stores body as the avatar of the current user and returns its
// URL. The stored object is removed again when the profile write fails.
func (u *AvatarUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	user := u.target.CurrentUser()
	if user == nil {
		return "", auth.ErrNoCurrentUser
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", goerrors.New("avatar must be an image", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"content_type": contentType})
	}

	key := fmt.Sprintf("avatars/%s/%s%s", user.ID, u.newID(), avatarExt(filename, mediaType))

	url, err := u.store.Put(ctx, key, mediaType, body)
	if err != nil {
		u.logger.Error("avatar upload failed", "user_id", user.ID, "key", key, "error", err)
		return "", err
	}

	if err := u.target.UpdateAvatar(ctx, url); err != nil {
		if derr := u.store.Delete(ctx, key); derr != nil {
			u.logger.Warn("unable to remove orphaned avatar", "key", key, "error", derr)
		}
		return "", err
	}

	u.logger.Info("avatar stored", "user_id", user.ID, "key", key)
	return url, nil
}

func avatarExt(filename, mediaType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
