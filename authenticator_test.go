package authgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-authgate"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(_ context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

func newSubmitter(identity authgate.IdentityClient, store authgate.Datastore) (*authgate.CredentialSubmitter, *recordingNotifier, *recordingSink) {
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	s := authgate.NewCredentialSubmitter(identity, store, notifier).
		WithLogger(&captureLogger{}).
		WithActivitySink(sink)
	return s, notifier, sink
}

func TestSignInSuccessRaisesNoAlert(t *testing.T) {
	identity := newFakeIdentity()
	var gotEmail, gotPassword string
	identity.signIn = func(_ context.Context, email, password string) (*authgate.User, error) {
		gotEmail, gotPassword = email, password
		return &authgate.User{UID: "u1", Email: email}, nil
	}
	s, notifier, sink := newSubmitter(identity, nil)

	user, err := s.SignIn(context.Background(), " Ana@Example.com ", "secret ")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UID)

	// credentials are forwarded untouched
	assert.Equal(t, " Ana@Example.com ", gotEmail)
	assert.Equal(t, "secret ", gotPassword)

	assert.Empty(t, notifier.Alerts())
	assert.False(t, s.Loading())
	assert.Equal(t, []authgate.ActivityEventType{authgate.ActivityEventSignInSuccess}, sink.Types())
}

func TestSignInFailureMapsProviderCode(t *testing.T) {
	identity := newFakeIdentity()
	identity.signIn = func(context.Context, string, string) (*authgate.User, error) {
		return nil, codedError{code: authgate.CodeWrongPassword}
	}
	s, notifier, sink := newSubmitter(identity, nil)

	user, err := s.SignIn(context.Background(), "a@b.co", "nope")
	require.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, authgate.IsAuthError(err, authgate.CodeWrongPassword))

	var authErr *authgate.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "sign_in", authErr.Op)
	assert.Equal(t, "Senha incorreta. Tente novamente.", authErr.Message)
	assert.ErrorAs(t, err, &codedError{})

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, authgate.DefaultAlertTitle, alerts[0].title)
	assert.Equal(t, "Senha incorreta. Tente novamente.", alerts[0].message)
	assert.Equal(t, authgate.AlertError, alerts[0].kind)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, authgate.ActivityEventSignInFailure, events[0].EventType)
	assert.Equal(t, authgate.CodeWrongPassword, events[0].Metadata["code"])
	assert.Equal(t, "unknown", events[0].Actor.Type)
}

func TestSignInUnknownCodeUsesDefaultMessage(t *testing.T) {
	identity := newFakeIdentity()
	identity.signIn = func(context.Context, string, string) (*authgate.User, error) {
		return nil, codedError{code: "auth/quota-exceeded"}
	}
	s, notifier, _ := newSubmitter(identity, nil)
	s.WithCatalog(authgate.CatalogFor(authgate.LocaleEN)).WithAlertTitle("Sign in")

	_, err := s.SignIn(context.Background(), "a@b.co", "pw")
	require.Error(t, err)

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Sign in", alerts[0].title)
	assert.Equal(t, "Something went wrong. Please try again.", alerts[0].message)
}

func TestSubmissionInFlightIsRejected(t *testing.T) {
	identity := newFakeIdentity()
	release := make(chan struct{})
	entered := make(chan struct{})
	identity.signIn = func(ctx context.Context, email, _ string) (*authgate.User, error) {
		close(entered)
		<-release
		return &authgate.User{UID: "u1", Email: email}, nil
	}
	s, _, _ := newSubmitter(identity, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.SignIn(context.Background(), "a@b.co", "pw")
		done <- err
	}()

	<-entered
	assert.True(t, s.Loading())

	_, err := s.SignUp(context.Background(), "c@d.co", "pw")
	require.ErrorIs(t, err, authgate.ErrSubmissionInFlight)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sign in did not finish")
	}
	assert.False(t, s.Loading())
}

func TestLoadingSpansOutstandingSubmission(t *testing.T) {
	type submitFunc func(*authgate.CredentialSubmitter) (*authgate.User, error)
	signIn := func(s *authgate.CredentialSubmitter) (*authgate.User, error) {
		return s.SignIn(context.Background(), "a@b.co", "pw")
	}
	signUp := func(s *authgate.CredentialSubmitter) (*authgate.User, error) {
		return s.SignUp(context.Background(), "a@b.co", "pw")
	}

	cases := []struct {
		name    string
		submit  submitFunc
		signUp  bool
		failure error
	}{
		{name: "sign in success", submit: signIn},
		{name: "sign in failure", submit: signIn, failure: codedError{code: authgate.CodeWrongPassword}},
		{name: "sign up success", submit: signUp, signUp: true},
		{name: "sign up failure", submit: signUp, signUp: true, failure: codedError{code: authgate.CodeEmailAlreadyInUse}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})
			blocking := func(_ context.Context, email, _ string) (*authgate.User, error) {
				close(entered)
				<-release
				if tc.failure != nil {
					return nil, tc.failure
				}
				return &authgate.User{UID: "u1", Email: email}, nil
			}

			identity := newFakeIdentity()
			if tc.signUp {
				identity.signUp = blocking
			} else {
				identity.signIn = blocking
			}
			s, _, _ := newSubmitter(identity, nil)
			assert.False(t, s.Loading())

			done := make(chan error, 1)
			go func() {
				_, err := tc.submit(s)
				done <- err
			}()

			<-entered
			assert.True(t, s.Loading())
			close(release)

			select {
			case err := <-done:
				if tc.failure != nil {
					require.Error(t, err)
				} else {
					require.NoError(t, err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("submission did not finish")
			}
			assert.False(t, s.Loading())
		})
	}
}

func TestSignUpWritesProfileAndAlerts(t *testing.T) {
	identity := newFakeIdentity()
	store := &MockDatastore{}
	store.On("WriteRecord", mock.Anything, "/users/new-uid", map[string]any{"email": "ana@example.com"}).
		Return(nil).
		Once()

	s, notifier, sink := newSubmitter(identity, store)

	user, err := s.SignUp(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "new-uid", user.UID)

	store.AssertExpectations(t)
	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Conta criada com sucesso!", alerts[0].message)
	assert.Equal(t, authgate.AlertSuccess, alerts[0].kind)
	assert.Equal(t, []authgate.ActivityEventType{authgate.ActivityEventSignUpSuccess}, sink.Types())
}

func TestSignUpProfileWriteFailureIsOnlyLogged(t *testing.T) {
	identity := newFakeIdentity()
	store := &MockDatastore{}
	store.On("WriteRecord", mock.Anything, "/users/new-uid", mock.Anything).
		Return(errors.New("permission denied")).
		Once()

	logger := &captureLogger{}
	notifier := &recordingNotifier{}
	s := authgate.NewCredentialSubmitter(identity, store, notifier).WithLogger(logger)

	_, err := s.SignUp(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	store.AssertExpectations(t)
	assert.Contains(t, logger.Messages("error"), "profile write failed")
	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, authgate.AlertSuccess, alerts[0].kind)
}

func TestSignUpFailureWritesNothing(t *testing.T) {
	identity := newFakeIdentity()
	identity.signUp = func(context.Context, string, string) (*authgate.User, error) {
		return nil, codedError{code: authgate.CodeEmailAlreadyInUse}
	}
	store := &MockDatastore{}
	s, notifier, _ := newSubmitter(identity, store)

	_, err := s.SignUp(context.Background(), "ana@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, authgate.IsAuthError(err, authgate.CodeEmailAlreadyInUse))

	store.AssertNotCalled(t, "WriteRecord", mock.Anything, mock.Anything, mock.Anything)
	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Este email já está em uso por outra conta.", alerts[0].message)
}

func TestSignUpBlockedByFeatureGate(t *testing.T) {
	identity := newFakeIdentity()
	called := false
	identity.signUp = func(context.Context, string, string) (*authgate.User, error) {
		called = true
		return nil, nil
	}
	stubGate := &stubFeatureGate{enabled: map[string]bool{gate.FeatureUsersSignup: false}}
	s, notifier, _ := newSubmitter(identity, nil)
	s.WithFeatureGate(stubGate)

	_, err := s.SignUp(context.Background(), "a@b.co", "pw")
	require.ErrorIs(t, err, authgate.ErrSignupDisabled)
	assert.False(t, called)
	assert.Equal(t, []string{gate.FeatureUsersSignup}, stubGate.calls)
	assert.False(t, s.Loading())

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "O cadastro de novas contas está desativado.", alerts[0].message)
}

func TestSignOut(t *testing.T) {
	identity := newFakeIdentity()
	identity.current = &authgate.User{UID: "u1"}
	s, notifier, sink := newSubmitter(identity, nil)

	require.NoError(t, s.SignOut(context.Background()))
	assert.Nil(t, identity.CurrentUser())

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Logout realizado com sucesso!", alerts[0].message)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, authgate.ActivityEventSignOut, events[0].EventType)
	assert.Equal(t, "u1", events[0].UserID)
}

func TestSignOutFailure(t *testing.T) {
	identity := newFakeIdentity()
	identity.signOut = errors.New("offline")
	s, notifier, sink := newSubmitter(identity, nil)

	require.Error(t, s.SignOut(context.Background()))

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Erro ao fazer logout. Tente novamente.", alerts[0].message)
	assert.Equal(t, authgate.AlertError, alerts[0].kind)
	assert.Empty(t, sink.Events())
}

func TestRequestPasswordReset(t *testing.T) {
	identity := newFakeIdentity()
	flags := authgate.NewFeatureFlags(nil, authgate.WithFlagsDefaults(map[string]any{
		authgate.RemoteKeyNewScreenEnabled: true,
	}))
	s, notifier, _ := newSubmitter(identity, nil)
	s.WithFeatureGate(flags)

	require.NoError(t, s.RequestPasswordReset(context.Background(), "ana@example.com"))
	assert.Equal(t, []string{"ana@example.com"}, identity.resetSent)

	alerts := notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Enviamos um email para redefinir sua senha.", alerts[0].message)
}

func TestRequestPasswordResetDisabledByDefault(t *testing.T) {
	identity := newFakeIdentity()
	s, notifier, _ := newSubmitter(identity, nil)
	s.WithFeatureGate(authgate.NewFeatureFlags(nil))

	err := s.RequestPasswordReset(context.Background(), "ana@example.com")
	require.ErrorIs(t, err, authgate.ErrPasswordResetDisabled)
	assert.Empty(t, identity.resetSent)
	require.Len(t, notifier.Alerts(), 1)
}

func TestRequestPasswordResetFailureMapsCode(t *testing.T) {
	identity := newFakeIdentity()
	identity.resetErr = codedError{code: authgate.CodeUserNotFound}
	s, notifier, _ := newSubmitter(identity, nil)

	err := s.RequestPasswordReset(context.Background(), "ghost@example.com")
	assert.True(t, authgate.IsAuthError(err, authgate.CodeUserNotFound))
	require.Len(t, notifier.Alerts(), 1)
	assert.Equal(t, "Usuário não encontrado. Verifique o email informado.", notifier.Alerts()[0].message)
}

func TestRequestPasswordResetNeedsSender(t *testing.T) {
	s, _, _ := newSubmitter(bareIdentity{IdentityClient: newFakeIdentity()}, nil)

	err := s.RequestPasswordReset(context.Background(), "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collaborator")
}

func TestSubmitterWithoutIdentity(t *testing.T) {
	s := authgate.NewCredentialSubmitter(nil, nil, nil)

	_, err := s.SignIn(context.Background(), "a@b.co", "pw")
	require.Error(t, err)
	_, err = s.SignUp(context.Background(), "a@b.co", "pw")
	require.Error(t, err)
	require.Error(t, s.SignOut(context.Background()))
	assert.False(t, s.Loading())
}

func TestProfilePath(t *testing.T) {
	assert.Equal(t, "/users/abc", authgate.ProfilePath("abc"))
	assert.Equal(t, "/users/abc", authgate.ProfilePath(" abc "))
}
