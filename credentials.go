package authgate

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Credentials is the email/password pair typed into the login form. It is
// never persisted.
type Credentials struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Ready reports whether both fields are filled in. Submission controls stay
// disabled until it returns true. No format checks happen here; the
// identity provider owns credential correctness.
func (c Credentials) Ready() bool {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	) == nil
}

// Validate performs the stricter form check used by the shell before it
// offers a password reset.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
		),
	)
}

// ValidateEmail checks only the email field.
func (c Credentials) ValidateEmail() error {
	return validation.Validate(c.Email, validation.Required, is.Email)
}

// Redacted returns a copy safe to log.
func (c Credentials) Redacted() Credentials {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}
