// Package auth checks sign-in credentials against the configured account.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrInvalidCredentials is the only failure a caller sees; which half was
// wrong is not revealed.
var ErrInvalidCredentials = errors.New("invalid email or password")

// FailureMessage is shown on the sign-in form after a rejected attempt.
const FailureMessage = "Invalid email or password"

// Account is the single dashboard account.
type Account struct {
	Username string
	Email    string
	Password string
}

// Authenticator verifies sign-in attempts.
type Authenticator struct {
	account Account
}

func New(account Account) *Authenticator {
	return &Authenticator{account: account}
}

// Verify accepts either the username or the email as identity. Identity
// matching ignores case and surrounding space; the password must match exactly.
// It returns the canonical username on success.
func (a *Authenticator) Verify(identity, password string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	userOK := equal(id, strings.ToLower(a.account.Username))
	emailOK := a.account.Email != "" && equal(id, strings.ToLower(a.account.Email))
	passOK := equal(password, a.account.Password)
	if (userOK || emailOK) && passOK {
		return a.account.Username, nil
	}
	return "", ErrInvalidCredentials
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
