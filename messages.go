package authgate

import (
	"maps"
	"strings"
)

// Provider error codes known to the message catalog.
const (
	CodeEmailAlreadyInUse       = "auth/email-already-in-use"
	CodeInvalidEmail            = "auth/invalid-email"
	CodeWeakPassword            = "auth/weak-password"
	CodeUserNotFound            = "auth/user-not-found"
	CodeWrongPassword           = "auth/wrong-password"
	CodeInvalidCredential       = "auth/invalid-credential"
	CodeUserDisabled            = "auth/user-disabled"
	CodeTooManyRequests         = "auth/too-many-requests"
	CodeNetworkRequestFailed    = "auth/network-request-failed"
	CodeOperationNotAllowed     = "auth/operation-not-allowed"
	CodeMissingPassword         = "auth/missing-password"
	CodeMissingEmail            = "auth/missing-email"
	CodeInvalidLoginCredentials = "auth/invalid-login-credentials"
)

// Keys of non error messages.
const (
	MessageSignupSuccess        = "signup_success"
	MessageSignoutSuccess       = "signout_success"
	MessageSignoutFailure       = "signout_failure"
	MessagePasswordResetSent    = "password_reset_sent"
	MessagePasswordResetBlocked = "password_reset_disabled"
	MessageSignupBlocked        = "signup_disabled"
)

const (
	LocalePTBR = "pt-BR"
	LocaleEN   = "en"
)

// MessageCatalog maps provider error codes to user facing messages.
type MessageCatalog struct {
	Locale         string
	DefaultMessage string
	Errors         map[string]string
	Messages       map[string]string
}

// Lookup returns the message for code, or the default message when the
// code is not mapped.
func (c MessageCatalog) Lookup(code string) string {
	if msg, ok := c.Errors[strings.TrimSpace(code)]; ok {
		return msg
	}
	return c.DefaultMessage
}

// Message returns a non error message by key. Missing keys return "".
func (c MessageCatalog) Message(key string) string {
	return c.Messages[key]
}

var catalogs = map[string]MessageCatalog{
	LocalePTBR: {
		Locale:         LocalePTBR,
		DefaultMessage: "Ocorreu um erro inesperado. Tente novamente.",
		Errors: map[string]string{
			CodeEmailAlreadyInUse:       "Este email já está em uso por outra conta.",
			CodeInvalidEmail:            "O endereço de email é inválido.",
			CodeWeakPassword:            "A senha deve ter pelo menos 6 caracteres.",
			CodeUserNotFound:            "Usuário não encontrado. Verifique o email informado.",
			CodeWrongPassword:           "Senha incorreta. Tente novamente.",
			CodeInvalidCredential:       "Email ou senha inválidos.",
			CodeInvalidLoginCredentials: "Email ou senha inválidos.",
			CodeUserDisabled:            "Esta conta foi desativada.",
			CodeTooManyRequests:         "Muitas tentativas. Aguarde um momento e tente novamente.",
			CodeNetworkRequestFailed:    "Falha de conexão. Verifique sua internet.",
			CodeOperationNotAllowed:     "Operação não permitida.",
			CodeMissingPassword:         "Informe a senha.",
			CodeMissingEmail:            "Informe o email.",
		},
		Messages: map[string]string{
			MessageSignupSuccess:        "Conta criada com sucesso!",
			MessageSignoutSuccess:       "Logout realizado com sucesso!",
			MessageSignoutFailure:       "Erro ao fazer logout. Tente novamente.",
			MessagePasswordResetSent:    "Enviamos um email para redefinir sua senha.",
			MessagePasswordResetBlocked: "A redefinição de senha não está disponível.",
			MessageSignupBlocked:        "O cadastro de novas contas está desativado.",
		},
	},
	LocaleEN: {
		Locale:         LocaleEN,
		DefaultMessage: "Something went wrong. Please try again.",
		Errors: map[string]string{
			CodeEmailAlreadyInUse:       "This email is already in use by another account.",
			CodeInvalidEmail:            "The email address is invalid.",
			CodeWeakPassword:            "The password must be at least 6 characters long.",
			CodeUserNotFound:            "User not found. Check the email address.",
			CodeWrongPassword:           "Wrong password. Please try again.",
			CodeInvalidCredential:       "Invalid email or password.",
			CodeInvalidLoginCredentials: "Invalid email or password.",
			CodeUserDisabled:            "This account has been disabled.",
			CodeTooManyRequests:         "Too many attempts. Wait a moment and try again.",
			CodeNetworkRequestFailed:    "Network error. Check your connection.",
			CodeOperationNotAllowed:     "Operation not allowed.",
			CodeMissingPassword:         "Enter your password.",
			CodeMissingEmail:            "Enter your email.",
		},
		Messages: map[string]string{
			MessageSignupSuccess:        "Account created successfully!",
			MessageSignoutSuccess:       "Signed out successfully!",
			MessageSignoutFailure:       "Could not sign out. Please try again.",
			MessagePasswordResetSent:    "We sent you an email to reset your password.",
			MessagePasswordResetBlocked: "Password reset is not available.",
			MessageSignupBlocked:        "New account registration is disabled.",
		},
	},
}

// CatalogFor returns a copy of the catalog for locale. Unknown locales get pt-BR.
func CatalogFor(locale string) MessageCatalog {
	locale = strings.TrimSpace(locale)
	if c, ok := catalogs[locale]; ok {
		return c.clone()
	}
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		if c, ok := catalogs[strings.ToLower(locale[:i])]; ok {
			return c.clone()
		}
	}
	return catalogs[LocalePTBR].clone()
}

// DefaultCatalog returns a copy of the pt-BR catalog.
func DefaultCatalog() MessageCatalog {
	return catalogs[LocalePTBR].clone()
}

func (c MessageCatalog) clone() MessageCatalog {
	c.Errors = maps.Clone(c.Errors)
	c.Messages = maps.Clone(c.Messages)
	return c
}

// ErrorMessage maps a provider error code through the default catalog.
func ErrorMessage(code string) string {
	return DefaultCatalog().Lookup(code)
}
