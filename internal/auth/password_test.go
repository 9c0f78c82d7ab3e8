package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminGuard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	guard := NewAdminGuard(string(hash))

	if !guard.Enabled() {
		t.Error("expected guard to be enabled")
	}
	if err := guard.Check("hunter2"); err != nil {
		t.Errorf("expected correct password to pass, got %v", err)
	}
	if err := guard.Check("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAdminGuardDisabled(t *testing.T) {
	guard := NewAdminGuard("")

	if guard.Enabled() {
		t.Error("expected guard to be disabled for an empty hash")
	}
	if err := guard.Check("anything"); err != nil {
		t.Errorf("expected disabled guard to accept, got %v", err)
	}
}
