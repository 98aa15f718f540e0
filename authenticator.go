package authgate

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

// DefaultAlertTitle is the title of every alert raised by the submitter.
const DefaultAlertTitle = "Login"

// ProfilePath returns the datastore path of the profile record for uid.
func ProfilePath(uid string) string {
	return "/users/" + strings.TrimSpace(uid)
}

// CredentialSubmitter forwards credentials to the identity collaborator and
// turns the outcome into user feedback.
type CredentialSubmitter struct {
	identity     IdentityClient
	datastore    Datastore
	notifier     Notifier
	catalog      MessageCatalog
	alertTitle   string
	featureGate  gate.FeatureGate
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	inFlight     atomic.Bool
}

// NewCredentialSubmitter returns a submitter using the pt-BR catalog.
func NewCredentialSubmitter(identity IdentityClient, datastore Datastore, notifier Notifier) *CredentialSubmitter {
	return &CredentialSubmitter{
		identity:     identity,
		datastore:    datastore,
		notifier:     normalizeNotifier(notifier),
		catalog:      DefaultCatalog(),
		alertTitle:   DefaultAlertTitle,
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *CredentialSubmitter) WithLogger(logger Logger) *CredentialSubmitter {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *CredentialSubmitter) WithActivitySink(sink ActivitySink) *CredentialSubmitter {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithCatalog replaces the message catalog.
func (s *CredentialSubmitter) WithCatalog(catalog MessageCatalog) *CredentialSubmitter {
	s.catalog = catalog
	return s
}

func (s *CredentialSubmitter) WithAlertTitle(title string) *CredentialSubmitter {
	if title = strings.TrimSpace(title); title != "" {
		s.alertTitle = title
	}
	return s
}

// WithFeatureGate guards sign up and password reset behind remote flags.
func (s *CredentialSubmitter) WithFeatureGate(featureGate gate.FeatureGate) *CredentialSubmitter {
	s.featureGate = featureGate
	return s
}

func (s *CredentialSubmitter) WithClock(clock func() time.Time) *CredentialSubmitter {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Catalog returns the message catalog in use.
func (s *CredentialSubmitter) Catalog() MessageCatalog {
	return s.catalog
}

// Loading is true strictly while a submission is outstanding.
func (s *CredentialSubmitter) Loading() bool {
	return s.inFlight.Load()
}

func (s *CredentialSubmitter) acquire() bool {
	return s.inFlight.CompareAndSwap(false, true)
}

func (s *CredentialSubmitter) release() {
	s.inFlight.Store(false)
}

// SignIn authenticates an existing account. Success raises no notification;
// the session gate reacts to the resulting auth event.
func (s *CredentialSubmitter) SignIn(ctx context.Context, email, password string) (*User, error) {
	if s.identity == nil {
		return nil, missingCollaborator("identity")
	}
	if !s.acquire() {
		return nil, ErrSubmissionInFlight
	}
	defer s.release()

	user, err := s.identity.SignInWithEmailAndPassword(ctx, email, password)
	if err != nil {
		return nil, s.fail(ctx, "sign_in", ActivityEventSignInFailure, email, err)
	}

	s.logger.Info("sign in succeeded", "uid", user.ID())
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    user.ID(),
		Metadata:  map[string]any{"email": email},
	})

	return user, nil
}

// SignUp creates an account, writes the profile record and raises the
// sign up success alert. The profile write outcome is only logged.
func (s *CredentialSubmitter) SignUp(ctx context.Context, email, password string) (*User, error) {
	if s.identity == nil {
		return nil, missingCollaborator("identity")
	}
	if !s.acquire() {
		return nil, ErrSubmissionInFlight
	}
	defer s.release()

	if err := requireSignupGate(withCurrentUser(ctx, s.identity), s.featureGate); err != nil {
		if stderrors.Is(err, ErrSignupDisabled) {
			s.notifier.Alert(s.alertTitle, s.catalog.Message(MessageSignupBlocked), AlertError)
		} else {
			s.logger.Error("sign up gate check failed", "error", err)
		}
		return nil, err
	}

	user, err := s.identity.CreateUserWithEmailAndPassword(ctx, email, password)
	if err != nil {
		return nil, s.fail(ctx, "sign_up", ActivityEventSignUpFailure, email, err)
	}

	s.writeProfile(ctx, user)
	s.notifier.Alert(s.alertTitle, s.catalog.Message(MessageSignupSuccess), AlertSuccess)

	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		UserID:    user.ID(),
		Metadata:  map[string]any{"email": email},
	})

	return user, nil
}

// SignOut ends the session and alerts the outcome.
func (s *CredentialSubmitter) SignOut(ctx context.Context) error {
	if s.identity == nil {
		return missingCollaborator("identity")
	}

	uid := s.identity.CurrentUser().ID()
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.Error("sign out failed", "uid", uid, "error", err)
		s.notifier.Alert(s.alertTitle, s.catalog.Message(MessageSignoutFailure), AlertError)
		return err
	}

	s.notifier.Alert(s.alertTitle, s.catalog.Message(MessageSignoutSuccess), AlertSuccess)
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSignOut,
		UserID:    uid,
		FromState: StateAuthenticated,
		ToState:   StateAnonymous,
	})
	return nil
}

// RequestPasswordReset sends a reset email when the password reset feature
// is enabled.
func (s *CredentialSubmitter) RequestPasswordReset(ctx context.Context, email string) error {
	if err := requirePasswordResetGate(withCurrentUser(ctx, s.identity), s.featureGate); err != nil {
		if stderrors.Is(err, ErrPasswordResetDisabled) {
			s.notifier.Alert(s.alertTitle, s.catalog.Message(MessagePasswordResetBlocked), AlertError)
		} else {
			s.logger.Error("password reset gate check failed", "error", err)
		}
		return err
	}

	sender, ok := s.identity.(PasswordResetSender)
	if !ok || sender == nil {
		return missingCollaborator("password_reset_sender")
	}

	if !s.acquire() {
		return ErrSubmissionInFlight
	}
	defer s.release()

	if err := sender.SendPasswordResetEmail(ctx, email); err != nil {
		return s.fail(ctx, "password_reset", ActivityEventPasswordResetRequest, email, err)
	}

	s.notifier.Alert(s.alertTitle, s.catalog.Message(MessagePasswordResetSent), AlertSuccess)
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Metadata:  map[string]any{"email": email},
	})
	return nil
}

func (s *CredentialSubmitter) writeProfile(ctx context.Context, user *User) {
	if user == nil || user.UID == "" {
		s.logger.Warn("sign up returned no user, profile not written")
		return
	}
	if s.datastore == nil {
		s.logger.Warn("no datastore configured, profile not written", "uid", user.UID)
		return
	}

	path := ProfilePath(user.UID)
	if err := s.datastore.WriteRecord(ctx, path, map[string]any{"email": user.Email}); err != nil {
		s.logger.Error("profile write failed", "path", path, "error", err)
		return
	}
	s.logger.Debug("profile written", "path", path)
}

func (s *CredentialSubmitter) fail(ctx context.Context, op string, event ActivityEventType, email string, err error) *AuthError {
	code := ErrorCodeOf(err)
	message := s.catalog.Lookup(code)

	s.logger.Error(op+" failed", "code", code, "error", err)
	s.notifier.Alert(s.alertTitle, message, AlertError)

	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: event,
		Actor:     ActorRef{Type: "unknown"},
		Metadata: map[string]any{
			"email": email,
			"code":  code,
			"error": err.Error(),
		},
	})

	return &AuthError{Op: op, Code: code, Message: message, Err: err}
}

type noopNotifier struct{}

func (noopNotifier) Alert(string, string, AlertKind) {}
func (noopNotifier) Toast(Toast)                     {}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
