package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	a := New(Account{Username: "admin", Email: "admin@callpulse.local", Password: "s3cret"})

	user, err := a.Verify("admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user)

	user, err = a.Verify("  Admin@CallPulse.local ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user)

	for _, tc := range []struct{ id, pass string }{
		{"admin", "S3CRET"},
		{"someone", "s3cret"},
		{"", "s3cret"},
		{"admin", ""},
	} {
		_, err := a.Verify(tc.id, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%q/%q", tc.id, tc.pass)
	}
	assert.Equal(t, "Invalid email or password", FailureMessage)
}

func TestVerifyWithoutEmail(t *testing.T) {
	a := New(Account{Username: "ops", Password: "pw"})
	_, err := a.Verify("", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Verify("ops", "pw")
	assert.NoError(t, err)
}
