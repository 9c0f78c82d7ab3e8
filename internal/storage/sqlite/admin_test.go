package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/storage"
)

func newTestAdmin(t *testing.T) *AdminStore {
	t.Helper()
	store, err := OpenAdmin(filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("Failed to create admin store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAdminSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newTestAdmin(t)

		created, err := store.CreateSession(ctx, "trip")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if created.ID == "" {
			t.Error("expected session ID to be generated")
		}

		got, err := store.GetSession(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.Name != "trip" {
			t.Errorf("name = %q, want trip", got.Name)
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		store := newTestAdmin(t)

		if _, err := store.CreateSession(ctx, "trip"); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		_, err := store.CreateSession(ctx, "trip")
		if !errors.Is(err, storage.ErrDuplicateName) {
			t.Errorf("expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("get unknown session", func(t *testing.T) {
		store := newTestAdmin(t)
		_, err := store.GetSession(ctx, "no-such-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		store := newTestAdmin(t)

		created, err := store.CreateSession(ctx, "trip")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if err := store.DeleteSession(ctx, created.ID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if err := store.DeleteSession(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func testPhrase(sessionID, text string, from, until time.Time) *models.SharePhrase {
	return &models.SharePhrase{
		SessionID:  sessionID,
		Phrase:     text,
		Token:      "token-" + text,
		ValidFrom:  from,
		ValidUntil: until,
	}
}

func TestAdminPhrases(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	newSession := func(t *testing.T, store *AdminStore) *models.Session {
		t.Helper()
		session, err := store.CreateSession(ctx, "trip")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		return session
	}

	t.Run("create for unknown session", func(t *testing.T) {
		store := newTestAdmin(t)
		err := store.CreatePhrase(ctx, testPhrase("no-such-id", "beach2026", now, now.Add(time.Hour)))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("active phrase text cannot be reused", func(t *testing.T) {
		store := newTestAdmin(t)
		session := newSession(t, store)

		if err := store.CreatePhrase(ctx, testPhrase(session.ID, "beach2026", now, now.Add(time.Hour))); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}
		err := store.CreatePhrase(ctx, testPhrase(session.ID, "beach2026", now, now.Add(2*time.Hour)))
		if !errors.Is(err, storage.ErrPhraseInUse) {
			t.Errorf("expected ErrPhraseInUse, got %v", err)
		}
	})

	t.Run("expired phrase text is purged and reusable", func(t *testing.T) {
		store := newTestAdmin(t)
		session := newSession(t, store)

		expired := testPhrase(session.ID, "beach2026", now.Add(-2*time.Hour), now.Add(-time.Hour))
		if err := store.CreatePhrase(ctx, expired); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}
		fresh := testPhrase(session.ID, "beach2026", now, now.Add(time.Hour))
		if err := store.CreatePhrase(ctx, fresh); err != nil {
			t.Fatalf("expected expired phrase to be purged, got %v", err)
		}

		// The expired row is gone.
		if _, err := store.GetPhrase(ctx, expired.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected purged phrase to be gone, got %v", err)
		}
	})

	t.Run("list returns only the session's phrases", func(t *testing.T) {
		store := newTestAdmin(t)
		session := newSession(t, store)
		other, err := store.CreateSession(ctx, "other")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		if err := store.CreatePhrase(ctx, testPhrase(session.ID, "mine111", now, now.Add(time.Hour))); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}
		if err := store.CreatePhrase(ctx, testPhrase(other.ID, "theirs11", now, now.Add(time.Hour))); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}

		phrases, err := store.ListPhrases(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListPhrases failed: %v", err)
		}
		if len(phrases) != 1 || phrases[0].Phrase != "mine111" {
			t.Errorf("phrases = %v, want just mine111", phrases)
		}
	})

	t.Run("list for unknown session", func(t *testing.T) {
		store := newTestAdmin(t)
		_, err := store.ListPhrases(ctx, "no-such-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deleting the session cascades its phrases", func(t *testing.T) {
		store := newTestAdmin(t)
		session := newSession(t, store)

		phrase := testPhrase(session.ID, "beach2026", now, now.Add(time.Hour))
		if err := store.CreatePhrase(ctx, phrase); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}
		if err := store.DeleteSession(ctx, session.ID); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}

		if _, err := store.GetPhrase(ctx, phrase.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected phrase to cascade away, got %v", err)
		}
	})

	t.Run("get round-trips token and window", func(t *testing.T) {
		store := newTestAdmin(t)
		session := newSession(t, store)

		from := now.Truncate(time.Second).UTC()
		until := from.Add(time.Hour)
		phrase := testPhrase(session.ID, "beach2026", from, until)
		if err := store.CreatePhrase(ctx, phrase); err != nil {
			t.Fatalf("CreatePhrase failed: %v", err)
		}

		got, err := store.GetPhrase(ctx, phrase.ID)
		if err != nil {
			t.Fatalf("GetPhrase failed: %v", err)
		}
		if got.Token != phrase.Token {
			t.Errorf("token = %q, want %q", got.Token, phrase.Token)
		}
		if !got.ValidFrom.Equal(from) || !got.ValidUntil.Equal(until) {
			t.Errorf("window = [%v, %v), want [%v, %v)", got.ValidFrom, got.ValidUntil, from, until)
		}
	})
}

func TestFindRedeemablePhrase(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store := newTestAdmin(t)
	session, err := store.CreateSession(ctx, "trip")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	phrases := []*models.SharePhrase{
		testPhrase(session.ID, "current1", now.Add(-time.Hour), now.Add(time.Hour)),
		testPhrase(session.ID, "future11", now.Add(time.Hour), now.Add(2*time.Hour)),
		testPhrase(session.ID, "past1111", now.Add(-2*time.Hour), now.Add(-time.Hour)),
	}
	for _, p := range phrases {
		if err := store.CreatePhrase(ctx, p); err != nil {
			t.Fatalf("CreatePhrase(%s) failed: %v", p.Phrase, err)
		}
	}

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"inside window", "current1", false},
		{"not yet valid", "future11", true},
		{"already expired", "past1111", true},
		{"unknown text", "missing1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindRedeemablePhrase(ctx, tt.text, now)
			if tt.wantErr {
				if !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindRedeemablePhrase failed: %v", err)
			}
			if got.Phrase != tt.text {
				t.Errorf("phrase = %q, want %q", got.Phrase, tt.text)
			}
		})
	}
}
