package authgate

import (
	"context"
	"sync"
)

// LoginView is a render snapshot of the login screen.
type LoginView struct {
	Title              string `json:"title"`
	Email              string `json:"email"`
	PasswordSet        bool   `json:"password_set"`
	Loading            bool   `json:"loading"`
	CanSubmit          bool   `json:"can_submit"`
	ShowForgotPassword bool   `json:"show_forgot_password"`
	PushToken          string `json:"push_token,omitempty"`
}

// LoginScreen is the public entry view model: the credential form plus the
// remote title, the forgot password switch and the push token debug line.
type LoginScreen struct {
	submitter *CredentialSubmitter
	flags     *FeatureFlags
	push      *PushRegistrar

	mu   sync.RWMutex
	form Credentials
}

func NewLoginScreen(submitter *CredentialSubmitter, flags *FeatureFlags, push *PushRegistrar) *LoginScreen {
	if flags == nil {
		flags = NewFeatureFlags(nil)
	}
	return &LoginScreen{
		submitter: submitter,
		flags:     flags,
		push:      push,
	}
}

func (s *LoginScreen) SetEmail(email string) {
	s.mu.Lock()
	s.form.Email = email
	s.mu.Unlock()
}

func (s *LoginScreen) SetPassword(password string) {
	s.mu.Lock()
	s.form.Password = password
	s.mu.Unlock()
}

// Form returns the current credentials.
func (s *LoginScreen) Form() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// Loading mirrors the submitter in flight state.
func (s *LoginScreen) Loading() bool {
	return s.submitter != nil && s.submitter.Loading()
}

// CanSubmit is false while loading or while either field is empty.
func (s *LoginScreen) CanSubmit() bool {
	return !s.Loading() && s.Form().Ready()
}

func (s *LoginScreen) Title() string {
	return s.flags.Title()
}

// ShowForgotPassword follows the NewScreenEnabled remote flag.
func (s *LoginScreen) ShowForgotPassword() bool {
	return s.flags.NewScreenEnabled()
}

// PushToken returns the last known push token.
func (s *LoginScreen) PushToken() string {
	if s.push == nil {
		return ""
	}
	return s.push.CurrentToken()
}

// RefreshToken re-reads the push token through the cache.
func (s *LoginScreen) RefreshToken(ctx context.Context) string {
	if s.push == nil {
		return ""
	}
	return s.push.Token(ctx)
}

// View returns a render snapshot.
func (s *LoginScreen) View() LoginView {
	form := s.Form()
	return LoginView{
		Title:              s.Title(),
		Email:              form.Email,
		PasswordSet:        form.Password != "",
		Loading:            s.Loading(),
		CanSubmit:          s.CanSubmit(),
		ShowForgotPassword: s.ShowForgotPassword(),
		PushToken:          s.PushToken(),
	}
}

// SignIn submits the form. It is refused with ErrCredentialsIncomplete when
// a field is empty, matching the disabled submit control.
func (s *LoginScreen) SignIn(ctx context.Context) (*User, error) {
	form, err := s.submittable()
	if err != nil {
		return nil, err
	}
	return s.submitter.SignIn(ctx, form.Email, form.Password)
}

// SignUp submits the form as a new account.
func (s *LoginScreen) SignUp(ctx context.Context) (*User, error) {
	form, err := s.submittable()
	if err != nil {
		return nil, err
	}
	return s.submitter.SignUp(ctx, form.Email, form.Password)
}

// ForgotPassword requests a reset email for the typed email.
func (s *LoginScreen) ForgotPassword(ctx context.Context) error {
	if s.submitter == nil {
		return missingCollaborator("submitter")
	}
	form := s.Form()
	if err := form.ValidateEmail(); err != nil {
		return err
	}
	return s.submitter.RequestPasswordReset(ctx, form.Email)
}

func (s *LoginScreen) submittable() (Credentials, error) {
	if s.submitter == nil {
		return Credentials{}, missingCollaborator("submitter")
	}
	form := s.Form()
	if !form.Ready() {
		return form, ErrCredentialsIncomplete
	}
	return form, nil
}

// HomeView is a render snapshot of the protected home screen.
type HomeView struct {
	Email string `json:"email"`
}

// HomeScreen is the protected entry view model.
type HomeScreen struct {
	identity  IdentityClient
	submitter *CredentialSubmitter
}

func NewHomeScreen(identity IdentityClient, submitter *CredentialSubmitter) *HomeScreen {
	return &HomeScreen{identity: identity, submitter: submitter}
}

// Email is the signed in user's email, or "" when nobody is signed in.
func (s *HomeScreen) Email() string {
	if s.identity == nil {
		return ""
	}
	if user := s.identity.CurrentUser(); user != nil {
		return user.Email
	}
	return ""
}

func (s *HomeScreen) View() HomeView {
	return HomeView{Email: s.Email()}
}

// SignOut ends the session; the gate handles the redirect.
func (s *HomeScreen) SignOut(ctx context.Context) error {
	if s.submitter == nil {
		return missingCollaborator("submitter")
	}
	return s.submitter.SignOut(ctx)
}
