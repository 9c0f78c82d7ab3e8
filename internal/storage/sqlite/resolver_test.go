package sqlite

import (
	"context"
	"os"
	"testing"
)

func TestLedgersResolveAndDrop(t *testing.T) {
	ctx := context.Background()
	ledgers := NewLedgers(t.TempDir() + "/sessions")
	t.Cleanup(func() { ledgers.CloseAll() })

	first, err := ledgers.Resolve("session-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := os.Stat(ledgers.Path("session-1")); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}

	// Second resolve returns the cached handle.
	second, err := ledgers.Resolve("session-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first != second {
		t.Error("expected the same handle on repeat resolution")
	}

	// Stores for different sessions are independent.
	other, err := ledgers.Resolve("session-2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := other.AddMember(ctx, "Alice", ""); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	members, err := first.ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected isolation between sessions, got %d members", len(members))
	}

	if err := ledgers.Drop("session-1"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, err := os.Stat(ledgers.Path("session-1")); !os.IsNotExist(err) {
		t.Errorf("expected database file to be removed, got %v", err)
	}

	// Dropping a session that was never opened is fine.
	if err := ledgers.Drop("never-opened"); err != nil {
		t.Errorf("Drop of unopened session failed: %v", err)
	}
}
