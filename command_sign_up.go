package authgate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// SignUpMessage asks the submitter to create a new account.
type SignUpMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"New account email."`
	Password   string `json:"password" doc:"New account password."`
	OnResponse func(user *User)
}

func (m SignUpMessage) Type() string { return "auth.sign_up" }

type SignUpHandler struct {
	submitter *CredentialSubmitter
}

func NewSignUpHandler(submitter *CredentialSubmitter) *SignUpHandler {
	return &SignUpHandler{submitter: submitter}
}

func (h *SignUpHandler) Execute(ctx context.Context, msg SignUpMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign up",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, msg SignUpMessage) error {
	if h.submitter == nil {
		return missingCollaborator("submitter")
	}

	user, err := h.submitter.SignUp(ctx, msg.Email, msg.Password)
	if err != nil {
		return err
	}

	if msg.OnResponse != nil {
		msg.OnResponse(user)
	}
	return nil
}
