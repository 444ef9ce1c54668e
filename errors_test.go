package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAuthError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected auth.AuthErrorKind
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: auth.AuthErrorNone,
		},
		{
			name:     "invalid login message",
			err:      errors.New("Invalid login credentials"),
			expected: auth.AuthErrorInvalidCredentials,
		},
		{
			name:     "weak password message",
			err:      errors.New("Password should be at least 6 characters"),
			expected: auth.AuthErrorWeakPassword,
		},
		{
			name:     "invalid email message",
			err:      fmt.Errorf("signup: %w", errors.New("Unable to validate email address: invalid format")),
			expected: auth.AuthErrorInvalidEmail,
		},
		{
			name:     "already registered message",
			err:      errors.New("User already registered"),
			expected: auth.AuthErrorAlreadyRegistered,
		},
		{
			name: "structured error matched by text code",
			err: goerrors.New("rejected", goerrors.CategoryAuth).
				WithTextCode(auth.TextCodeWeakPassword),
			expected: auth.AuthErrorWeakPassword,
		},
		{
			name:     "unrecognised error",
			err:      errors.New("connection reset by peer"),
			expected: auth.AuthErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.ClassifyAuthError(tt.err))
		})
	}
}

func TestIsSessionMissing(t *testing.T) {
	assert.True(t, auth.IsSessionMissing(auth.ErrSessionMissing))
	assert.True(t, auth.IsSessionMissing(errors.New("Auth session missing!")))
	assert.True(t, auth.IsSessionMissing(errors.New("user is not signed in")))
	assert.False(t, auth.IsSessionMissing(errors.New("network unreachable")))
	assert.False(t, auth.IsSessionMissing(nil))
}

func TestProfileErrorHelpers(t *testing.T) {
	assert.True(t, auth.IsProfileNotFound(auth.ErrProfileNotFound))
	assert.True(t, auth.IsProfileNotFound(fmt.Errorf("lookup: %w", auth.ErrProfileNotFound)))
	assert.False(t, auth.IsProfileNotFound(auth.ErrProfileExists))
	assert.False(t, auth.IsProfileNotFound(nil))

	assert.True(t, auth.IsProfileExists(auth.ErrProfileExists))
	assert.False(t, auth.IsProfileExists(errors.New("duplicate")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", auth.ErrorMessage(nil))
	assert.Equal(t, "plain", auth.ErrorMessage(errors.New("plain")))
	assert.Equal(t, auth.MessageNotConfigured, auth.ErrorMessage(auth.ErrNotConfigured))
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, auth.IsConfigurationError(auth.ErrNotConfigured))
	assert.False(t, auth.IsConfigurationError(auth.ErrNoCurrentUser))
	assert.False(t, auth.IsAuthError(errors.New("Invalid login credentials")))
	assert.False(t, auth.IsTransientError(auth.ErrProfileNotFound))
	assert.False(t, auth.IsValidationError(nil))
}
