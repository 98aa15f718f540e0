package authgate_test

import (
	"testing"

	"github.com/goliatone/go-authgate"
	"github.com/stretchr/testify/assert"
)

func TestCredentialsReady(t *testing.T) {
	assert.False(t, authgate.Credentials{}.Ready())
	assert.False(t, authgate.Credentials{Email: "a@b.co"}.Ready())
	assert.False(t, authgate.Credentials{Password: "pw"}.Ready())
	assert.True(t, authgate.Credentials{Email: "x", Password: "y"}.Ready())
}

func TestCredentialsValidate(t *testing.T) {
	assert.NoError(t, authgate.Credentials{Email: "ana@example.com", Password: "pw"}.Validate())
	assert.Error(t, authgate.Credentials{Email: "ana", Password: "pw"}.Validate())
	assert.Error(t, authgate.Credentials{Email: "ana@example.com"}.Validate())

	assert.NoError(t, authgate.Credentials{Email: "ana@example.com"}.ValidateEmail())
	assert.Error(t, authgate.Credentials{}.ValidateEmail())
}

func TestCredentialsRedacted(t *testing.T) {
	creds := authgate.Credentials{Email: "ana@example.com", Password: "secret"}
	redacted := creds.Redacted()

	assert.Equal(t, "********", redacted.Password)
	assert.Equal(t, "ana@example.com", redacted.Email)
	assert.Equal(t, "secret", creds.Password)
	assert.Equal(t, "", authgate.Credentials{}.Redacted().Password)
}
