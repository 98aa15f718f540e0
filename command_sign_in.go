package authgate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// SignInMessage asks the submitter to authenticate an existing account.
type SignInMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password   string `json:"password" doc:"Account password."`
	OnResponse func(user *User)
}

func (m SignInMessage) Type() string { return "auth.sign_in" }

type SignInHandler struct {
	submitter *CredentialSubmitter
}

func NewSignInHandler(submitter *CredentialSubmitter) *SignInHandler {
	return &SignInHandler{submitter: submitter}
}

func (h *SignInHandler) Execute(ctx context.Context, msg SignInMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign in",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SignInHandler) execute(ctx context.Context, msg SignInMessage) error {
	if h.submitter == nil {
		return missingCollaborator("submitter")
	}

	user, err := h.submitter.SignIn(ctx, msg.Email, msg.Password)
	if err != nil {
		return err
	}

	if msg.OnResponse != nil {
		msg.OnResponse(user)
	}
	return nil
}
