package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/expiry-notifier/internal/config"
)

func testTokenManager() *TokenManager {
	return NewTokenManager("test-secret", 15)
}

func TestGenerateAndParseToken(t *testing.T) {
	tm := testTokenManager()

	token, expiresAt, err := tm.GenerateToken("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := testTokenManager()
	other := NewTokenManager("other-secret", 15)

	token, _, err := tm.GenerateToken("admin")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := testTokenManager()

	_, err := tm.ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestCredentialsFromPlainPassword(t *testing.T) {
	creds, err := NewCredentials(config.AuthConfig{
		AdminUsername: "admin",
		AdminPassword: "hunter2",
		BcryptCost:    4,
	})
	require.NoError(t, err)

	assert.NoError(t, creds.Verify("admin", "hunter2"))
	assert.Error(t, creds.Verify("admin", "wrong"))
	assert.Error(t, creds.Verify("someone", "hunter2"))
}

func TestCredentialsPreferStoredHash(t *testing.T) {
	hash, err := HashPassword("from-hash", 4)
	require.NoError(t, err)

	creds, err := NewCredentials(config.AuthConfig{
		AdminUsername:     "admin",
		AdminPassword:     "ignored",
		AdminPasswordHash: hash,
		BcryptCost:        4,
	})
	require.NoError(t, err)

	assert.NoError(t, creds.Verify("admin", "from-hash"))
	assert.Error(t, creds.Verify("admin", "ignored"))
}

func TestCredentialsRequireConfiguration(t *testing.T) {
	_, err := NewCredentials(config.AuthConfig{AdminUsername: "admin"})
	assert.Error(t, err)
}
