package local

import (
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
)

// Messages returned by the store. They follow the wording of hosted
// identity services so auth.ClassifyAuthError recognises them even after
// the structured error is flattened to a string.
const (
	MessageInvalidEmail      = "Unable to validate email address: invalid format"
	MessageWeakPassword      = "Password should be at least %d characters"
	MessageAlreadyRegistered = "User already registered"
	MessageInvalidLogin      = "Invalid login credentials"
	MessageSessionMissing    = "Auth session missing"
)

func errInvalidEmail() *goerrors.Error {
	return goerrors.New(MessageInvalidEmail, goerrors.CategoryValidation).
		WithTextCode(auth.TextCodeInvalidEmail).
		WithCode(goerrors.CodeBadRequest)
}

func errWeakPassword(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(auth.TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest)
}

func errAlreadyRegistered() *goerrors.Error {
	return goerrors.New(MessageAlreadyRegistered, goerrors.CategoryConflict).
		WithTextCode(auth.TextCodeAlreadyRegistered).
		WithCode(goerrors.CodeConflict)
}

func errInvalidLogin() *goerrors.Error {
	return goerrors.New(MessageInvalidLogin, goerrors.CategoryAuth).
		WithTextCode(auth.TextCodeInvalidCreds).
		WithCode(goerrors.CodeUnauthorized)
}

func errSessionMissing() *goerrors.Error {
	return goerrors.New(MessageSessionMissing, goerrors.CategoryAuth).
		WithTextCode(auth.TextCodeSessionMissing).
		WithCode(goerrors.CodeUnauthorized)
}
