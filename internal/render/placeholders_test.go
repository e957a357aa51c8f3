package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesAllTokens(t *testing.T) {
	expires := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	vals := Values{
		DisplayName:   "Amy Pond",
		PrincipalName: "amy@example.com",
		DaysRemaining: 14,
		ExpiresAt:     &expires,
	}

	out, err := Render(
		"Hi {displayName} ({userPrincipalName}), your password expires in {daysRemaining} days on {expiryDate}.",
		vals,
	)

	require.NoError(t, err)
	assert.Equal(t, "Hi Amy Pond (amy@example.com), your password expires in 14 days on March 31, 2024.", out)
}

func TestRenderRepeatedToken(t *testing.T) {
	out, err := Render("{daysRemaining}... {daysRemaining} days left", Values{DaysRemaining: 7})
	require.NoError(t, err)
	assert.Equal(t, "7... 7 days left", out)
}

func TestRenderNeverExpires(t *testing.T) {
	out, err := Render("expires: {expiryDate}", Values{NeverExpires: true})
	require.NoError(t, err)
	assert.Equal(t, "expires: Never", out)

	out, err = Render("expires: {expiryDate}", Values{})
	require.NoError(t, err)
	assert.Equal(t, "expires: Never", out)
}

func TestRenderRejectsUnknownToken(t *testing.T) {
	_, err := Render("hello {firstName}", Values{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{firstName}")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("plain text, no tokens"))
	assert.NoError(t, Validate("{displayName} {expiryDate}"))
	assert.Error(t, Validate("{displayName} {nope}"))
}
