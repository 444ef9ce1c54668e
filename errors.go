package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfiguration     = "CONFIGURATION_ERROR"
	TextCodeValidation        = "VALIDATION_ERROR"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeWeakPassword      = "WEAK_PASSWORD"
	TextCodeInvalidEmail      = "INVALID_EMAIL"
	TextCodeAlreadyRegistered = "ALREADY_REGISTERED"
	TextCodeAuthFailed        = "AUTH_FAILED"
	TextCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	TextCodeProfileExists     = "PROFILE_EXISTS"
	TextCodeSessionMissing    = "SESSION_MISSING"
	TextCodeNoCurrentUser     = "NO_CURRENT_USER"
	TextCodeTransient         = "TRANSIENT_ERROR"
)

// User facing messages.
const (
	MessageNotConfigured      = "authentication service is not configured"
	MessageInvalidCredentials = "invalid email or password"
	MessageSignInFailed       = "unable to sign in, please try again"
	MessageWeakPassword       = "the password is too weak, use at least 6 characters"
	MessageInvalidEmail       = "the email address is not valid"
	MessageAlreadyRegistered  = "an account with this email already exists"
	MessageSignUpFailed       = "unable to complete the registration, please try again"
	MessageSignOutFailed      = "unable to sign out, please try again"
	MessageProfileFailed      = "unable to update the profile"
	MessageAvatarFailed       = "unable to update the avatar"
	MessagePasswordTooShort   = "password must be at least %d characters"
	MessageMalformedEmail     = "email address is malformed"
	MessageEmailRequired      = "email is required"
	MessagePasswordRequired   = "password is required"
	MessageNameRequired       = "display name is required"
	MessagePasswordMismatch   = "passwords do not match"
)

// ErrNotConfigured is returned when the remote collaborators are missing.
var ErrNotConfigured = goerrors.New(MessageNotConfigured, goerrors.CategoryInternal).
	WithTextCode(TextCodeConfiguration)

// ErrProfileNotFound is returned by a ProfileRepository for missing rows.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrProfileExists is returned by a ProfileRepository when a row for the
// same user id is already stored.
var ErrProfileExists = goerrors.New("profile already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeProfileExists).
	WithCode(goerrors.CodeConflict)

// ErrSessionMissing is returned by a SessionStore asked to end a session
// that does not exist.
var ErrSessionMissing = goerrors.New("auth session missing", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoCurrentUser is returned when an operation needs a signed in user.
var ErrNoCurrentUser = goerrors.New("no user is signed in", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoCurrentUser).
	WithCode(goerrors.CodeUnauthorized)

// AuthErrorKind is the cause of a rejected credential or registration.
type AuthErrorKind string

const (
	AuthErrorNone               AuthErrorKind = ""
	AuthErrorInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthErrorWeakPassword       AuthErrorKind = "weak_password"
	AuthErrorInvalidEmail       AuthErrorKind = "invalid_email"
	AuthErrorAlreadyRegistered  AuthErrorKind = "already_registered"
	AuthErrorUnknown            AuthErrorKind = "unknown"
)

var authKindTextCodes = map[AuthErrorKind]string{
	AuthErrorInvalidCredentials: TextCodeInvalidCreds,
	AuthErrorWeakPassword:       TextCodeWeakPassword,
	AuthErrorInvalidEmail:       TextCodeInvalidEmail,
	AuthErrorAlreadyRegistered:  TextCodeAlreadyRegistered,
	AuthErrorUnknown:            TextCodeAuthFailed,
}

var authSignatures = []struct {
	kind    AuthErrorKind
	needles []string
}{
	{AuthErrorInvalidCredentials, []string{"invalid login credentials", "invalid credentials", "invalid_credentials"}},
	{AuthErrorWeakPassword, []string{"weak_password", "weak password", "password is too weak", "password should be at least"}},
	{AuthErrorInvalidEmail, []string{"invalid email", "email_address_invalid", "unable to validate email", "invalid format"}},
	{AuthErrorAlreadyRegistered, []string{"already registered", "user_already_exists", "already exists"}},
}

// ClassifyAuthError maps a remote error to an AuthErrorKind. Structured
// errors are matched by text code, anything else by message signature.
func ClassifyAuthError(err error) AuthErrorKind {
	if err == nil {
		return AuthErrorNone
	}

	if code := textCode(err); code != "" {
		for kind, c := range authKindTextCodes {
			if c == code && kind != AuthErrorUnknown {
				return kind
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range authSignatures {
		for _, needle := range sig.needles {
			if strings.Contains(msg, needle) {
				return sig.kind
			}
		}
	}

	return AuthErrorUnknown
}

// AuthErrorKindOf returns the kind carried by an error produced by the
// service operations, or AuthErrorNone.
func AuthErrorKindOf(err error) AuthErrorKind {
	code := textCode(err)
	for kind, c := range authKindTextCodes {
		if c == code {
			return kind
		}
	}
	return AuthErrorNone
}

func newAuthError(kind AuthErrorKind, message string, cause error) *goerrors.Error {
	code := goerrors.CodeUnauthorized
	switch kind {
	case AuthErrorWeakPassword, AuthErrorInvalidEmail:
		code = goerrors.CodeBadRequest
	case AuthErrorAlreadyRegistered:
		code = goerrors.CodeConflict
	}

	err := goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(authKindTextCodes[kind]).
		WithCode(code)

	if cause != nil {
		err = err.WithMetadata(map[string]any{"cause": cause.Error()})
	}
	return err
}

func newValidationError(field, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": field})
}

func newTransientError(cause error, message string) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryOperation, message).
		WithTextCode(TextCodeTransient)
}

func textCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode
	}
	return ""
}

// ErrorMessage returns the message of a structured error, or err.Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.Message
	}
	return err.Error()
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	return textCode(err) == TextCodeConfiguration
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	return textCode(err) == TextCodeValidation
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	return AuthErrorKindOf(err) != AuthErrorNone
}

// IsTransientError reports whether err is a TransientError.
func IsTransientError(err error) bool {
	return textCode(err) == TextCodeTransient
}

// IsProfileNotFound reports whether err means the profile row is absent.
func IsProfileNotFound(err error) bool {
	if err == nil {
		return false
	}
	if textCode(err) == TextCodeProfileNotFound {
		return true
	}
	return goerrors.IsNotFound(err)
}

// IsProfileExists reports whether err means the profile row is already
// stored.
func IsProfileExists(err error) bool {
	return textCode(err) == TextCodeProfileExists
}

// IsSessionMissing reports whether err means there was no session to end.
func IsSessionMissing(err error) bool {
	if err == nil {
		return false
	}
	if textCode(err) == TextCodeSessionMissing {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session missing") ||
		strings.Contains(msg, "not signed in") ||
		strings.Contains(msg, "no active session")
}
