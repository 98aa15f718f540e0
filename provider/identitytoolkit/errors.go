package identitytoolkit

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
)

const providerName = "identitytoolkit"

// CodeInternalError is used for backend codes without a client mapping.
const CodeInternalError = "auth/internal-error"

var backendCodes = map[string]string{
	"EMAIL_EXISTS":                authgate.CodeEmailAlreadyInUse,
	"INVALID_EMAIL":               authgate.CodeInvalidEmail,
	"WEAK_PASSWORD":               authgate.CodeWeakPassword,
	"EMAIL_NOT_FOUND":             authgate.CodeUserNotFound,
	"INVALID_PASSWORD":            authgate.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   authgate.CodeInvalidCredential,
	"USER_DISABLED":               authgate.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": authgate.CodeTooManyRequests,
	"OPERATION_NOT_ALLOWED":       authgate.CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":     authgate.CodeOperationNotAllowed,
	"MISSING_PASSWORD":            authgate.CodeMissingPassword,
	"MISSING_EMAIL":               authgate.CodeMissingEmail,
	"TOKEN_EXPIRED":               "auth/user-token-expired",
	"INVALID_REFRESH_TOKEN":       "auth/invalid-user-token",
	"USER_NOT_FOUND":              authgate.CodeUserNotFound,
	"INVALID_ID_TOKEN":            "auth/invalid-user-token",
}

// MapErrorCode converts a backend message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to a client
// code such as "auth/weak-password".
func MapErrorCode(message string) string {
	key := strings.TrimSpace(message)
	if i := strings.Index(key, ":"); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	if code, ok := backendCodes[key]; ok {
		return code
	}
	return CodeInternalError
}

// ErrTokenInvalid is returned when an ID token fails verification.
var ErrTokenInvalid = goerrors.New("id token verification failed", goerrors.CategoryAuth).
	WithTextCode("ID_TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// ProviderError captures normalized provider response details.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := e.Provider
	if e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorCode implements authgate.CodedError.
func (e *ProviderError) ErrorCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{"provider": e.Provider}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}
	return meta
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *ProviderError {
	return &ProviderError{
		Provider:    providerName,
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}

func networkError(operation string, err error) *ProviderError {
	return providerError(operation, 0, authgate.CodeNetworkRequestFailed, "", err, nil)
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

