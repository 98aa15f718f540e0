package authgateadapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-authgate"
	"github.com/goliatone/go-featuregate/gate"
)

// Roles derived from the session and the signed in user.
const (
	RoleAuthenticated = "authenticated"
	RoleAnonymous     = "anonymous"
	RoleVerified      = "verified"
	RoleUnverified    = "unverified"
)

// UserExtractor extracts the signed in user from context.
type UserExtractor func(context.Context) (*authgate.User, bool)

// RoleMapper builds role identifiers from a user.
type RoleMapper func(user *authgate.User) []string

type Option func(*ClaimsProvider)

// ClaimsProvider derives feature claims from the session carried in context.
// A context holding an anonymous session yields the anonymous role only.
type ClaimsProvider struct {
	extractor  UserExtractor
	roleMapper RoleMapper
}

// NewClaimsProvider builds a claims provider reading authgate.FromContext.
func NewClaimsProvider(opts ...Option) *ClaimsProvider {
	provider := &ClaimsProvider{}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = authgate.FromContext
	}
	if provider.roleMapper == nil {
		provider.roleMapper = verificationRoles
	}
	return provider
}

// WithUserExtractor overrides the user extractor.
func WithUserExtractor(extractor UserExtractor) Option {
	return func(provider *ClaimsProvider) {
		provider.extractor = extractor
	}
}

// WithRoleMapper overrides the roles added for a signed in user.
func WithRoleMapper(mapper RoleMapper) Option {
	return func(provider *ClaimsProvider) {
		provider.roleMapper = mapper
	}
}

// ClaimsFromContext implements gate.ClaimsProvider.
func (p *ClaimsProvider) ClaimsFromContext(ctx context.Context) (gate.ActorClaims, error) {
	if p == nil {
		return gate.ActorClaims{}, nil
	}

	user, ok := p.extractor(ctx)
	if !ok || user == nil {
		if session, ok := authgate.SessionFromContext(ctx); ok && session.State == authgate.StateAnonymous {
			return gate.ActorClaims{Roles: []string{RoleAnonymous}}, nil
		}
		return gate.ActorClaims{}, nil
	}
	return claimsFromUser(user, p.roleMapper), nil
}

// ClaimsFromUser builds claims for a signed in user with the default roles.
func ClaimsFromUser(user *authgate.User) gate.ActorClaims {
	return claimsFromUser(user, verificationRoles)
}

func claimsFromUser(user *authgate.User, roles RoleMapper) gate.ActorClaims {
	if user == nil || user.UID == "" {
		return gate.ActorClaims{}
	}

	claims := gate.ActorClaims{
		SubjectID: user.UID,
		Roles:     []string{RoleAuthenticated},
	}
	if roles != nil {
		claims.Roles = append(claims.Roles, roles(user)...)
	}
	if domain := emailDomain(user.Email); domain != "" {
		claims.OrgID = domain
		claims.Perms = []string{"domain:" + domain}
	}
	return claims
}

func verificationRoles(user *authgate.User) []string {
	if user.EmailVerified {
		return []string{RoleVerified}
	}
	return []string{RoleUnverified}
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

var _ gate.ClaimsProvider = (*ClaimsProvider)(nil)
