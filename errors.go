package authgate

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// CodeUnknown is used when a failure carries neither a code nor a message.
	CodeUnknown = "unknown"

	textCodeSubmissionInFlight    = "SUBMISSION_IN_FLIGHT"
	textCodePasswordResetDisabled = "PASSWORD_RESET_DISABLED"
	textCodeSignupDisabled        = "SIGNUP_DISABLED"
	textCodeBackgroundInstalled   = "BACKGROUND_HANDLER_INSTALLED"
	textCodeMissingCollaborator   = "MISSING_COLLABORATOR"
	textCodeUnknownFeature        = "UNKNOWN_FEATURE"
	textCodeCredentialsIncomplete = "CREDENTIALS_INCOMPLETE"
)

// ErrSubmissionInFlight is returned when a credential submission is already outstanding.
var ErrSubmissionInFlight = errors.New("a submission is already in progress", errors.CategoryConflict).
	WithTextCode(textCodeSubmissionInFlight).
	WithCode(errors.CodeConflict)

// ErrPasswordResetDisabled is returned when the password reset feature is off.
var ErrPasswordResetDisabled = errors.New("password reset is disabled", errors.CategoryAuthz).
	WithTextCode(textCodePasswordResetDisabled).
	WithCode(errors.CodeForbidden)

// ErrSignupDisabled is returned when account creation is switched off remotely.
var ErrSignupDisabled = errors.New("signup is disabled", errors.CategoryAuthz).
	WithTextCode(textCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrBackgroundHandlerInstalled is returned by a second InstallBackgroundHandler call.
var ErrBackgroundHandlerInstalled = errors.New("background message handler already installed", errors.CategoryConflict).
	WithTextCode(textCodeBackgroundInstalled).
	WithCode(errors.CodeConflict)

// ErrMissingCollaborator is returned when a required collaborator was not configured.
var ErrMissingCollaborator = errors.New("required collaborator not configured", errors.CategoryInternal).
	WithTextCode(textCodeMissingCollaborator).
	WithCode(errors.CodeInternal)

// ErrUnknownFeature is returned when a feature key has no remote flag bound to it.
var ErrUnknownFeature = errors.New("feature key is not bound to a remote flag", errors.CategoryValidation).
	WithTextCode(textCodeUnknownFeature).
	WithCode(errors.CodeBadRequest)

// ErrCredentialsIncomplete is returned by screens when email or password is empty.
var ErrCredentialsIncomplete = errors.New("email and password are required", errors.CategoryValidation).
	WithTextCode(textCodeCredentialsIncomplete).
	WithCode(errors.CodeBadRequest)

// sentinelWithMetadata returns a copy of sentinel carrying metadata. The copy
// unwraps to sentinel so errors.Is keeps matching.
func sentinelWithMetadata(sentinel *errors.Error, metadata map[string]any) error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(metadata)
}

func missingCollaborator(name string) error {
	return sentinelWithMetadata(ErrMissingCollaborator, map[string]any{"collaborator": name})
}

// CodedError is implemented by collaborator errors that carry a provider code
// such as "auth/email-already-in-use".
type CodedError interface {
	error
	ErrorCode() string
}

// AuthError is a failed identity operation after code normalization and
// message lookup.
type AuthError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "auth error"
	}
	if e.Op != "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("auth failed: %s", e.Code)
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorCode implements CodedError.
func (e *AuthError) ErrorCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// ErrorCodeOf extracts the provider code of err. It falls back to the raw
// error message and finally to CodeUnknown.
func ErrorCodeOf(err error) string {
	if err == nil {
		return CodeUnknown
	}

	var coded CodedError
	if stderrors.As(err, &coded) && coded != nil {
		if code := strings.TrimSpace(coded.ErrorCode()); code != "" {
			return code
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}

	return CodeUnknown
}

// IsAuthError reports whether err is an AuthError with the given code.
func IsAuthError(err error, code string) bool {
	var authErr *AuthError
	if !stderrors.As(err, &authErr) || authErr == nil {
		return false
	}
	return authErr.Code == code
}
