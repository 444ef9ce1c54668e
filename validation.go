package auth

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type fieldCheck struct {
	field string
	value any
	rules []validation.Rule
}

// SignUpRequest is the input of SignUp.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
	DisplayName     string `json:"display_name"`
	AvatarURL       string `json:"avatar_url,omitempty"`
}

func (r SignUpRequest) normalized() SignUpRequest {
	r.Email = strings.TrimSpace(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.AvatarURL = strings.TrimSpace(r.AvatarURL)
	return r
}

// Validate checks the request before anything is sent to the session
// store. Rules run in order and the first violation is returned as a
// ValidationError carrying a rule specific message.
func (r SignUpRequest) Validate(minPasswordLength int) error {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}

	checks := []fieldCheck{
		{"email", r.Email, []validation.Rule{validation.Required.Error(MessageEmailRequired)}},
		{"password", r.Password, []validation.Rule{
			validation.Required.Error(MessagePasswordRequired),
			validation.RuneLength(minPasswordLength, 0).Error(fmt.Sprintf(MessagePasswordTooShort, minPasswordLength)),
		}},
		{"email", r.Email, []validation.Rule{is.Email.Error(MessageMalformedEmail)}},
		{"display_name", r.DisplayName, []validation.Rule{validation.Required.Error(MessageNameRequired)}},
	}

	if r.ConfirmPassword != "" {
		checks = append(checks, fieldCheck{"confirm_password", r.ConfirmPassword, []validation.Rule{
			validation.By(ValidateStringEquals(r.Password)),
		}})
	}

	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			return newValidationError(c.field, err.Error())
		}
	}
	return nil
}

// ValidateStringEquals returns a validation rule comparing against str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(MessagePasswordMismatch)
		}
		return nil
	}
}

func validateCredentials(email, password string) error {
	if err := validation.Validate(email, validation.Required.Error(MessageEmailRequired)); err != nil {
		return newValidationError("email", err.Error())
	}
	if err := validation.Validate(password, validation.Required.Error(MessagePasswordRequired)); err != nil {
		return newValidationError("password", err.Error())
	}
	return nil
}
