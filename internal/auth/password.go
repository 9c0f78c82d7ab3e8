package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid admin credentials")

// AdminGuard checks admin passwords against a configured bcrypt hash.
// An empty hash disables the check: in that deployment the admin surface is
// expected to sit behind an authenticating reverse proxy.
type AdminGuard struct {
	passwordHash []byte
}

// NewAdminGuard creates a guard for the given bcrypt hash (may be empty).
func NewAdminGuard(passwordHash string) *AdminGuard {
	return &AdminGuard{passwordHash: []byte(passwordHash)}
}

// Enabled reports whether a password hash is configured.
func (g *AdminGuard) Enabled() bool {
	return len(g.passwordHash) > 0
}

// Check verifies the password. Always succeeds when the guard is disabled.
func (g *AdminGuard) Check(password string) error {
	if !g.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
