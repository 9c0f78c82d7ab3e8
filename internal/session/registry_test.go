package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhao/aapay/internal/auth"
	"github.com/mzhao/aapay/internal/events"
	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/storage"
	"github.com/mzhao/aapay/internal/storage/sqlite"
)

type testEnv struct {
	registry *Registry
	ledgers  *sqlite.Ledgers
	hub      *events.Hub
	tokens   *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	admin, err := sqlite.OpenAdmin(filepath.Join(dir, "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close() })

	ledgers := sqlite.NewLedgers(filepath.Join(dir, "sessions"))
	t.Cleanup(func() { ledgers.CloseAll() })

	hub := events.NewHub()
	tokens := auth.NewJWTManager("test-secret")

	return &testEnv{
		registry: NewRegistry(admin, ledgers, hub, tokens),
		ledgers:  ledgers,
		hub:      hub,
		tokens:   tokens,
	}
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates session and ledger file", func(t *testing.T) {
		env := newTestEnv(t)

		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)

		_, err = os.Stat(env.ledgers.Path(session.ID))
		assert.NoError(t, err, "expected the ledger database file to exist")
	})

	t.Run("name length bounds", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.registry.CreateSession(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidSessionName)

		_, err = env.registry.CreateSession(ctx, "elevenchars")
		assert.ErrorIs(t, err, ErrInvalidSessionName)

		// Ten runes, not bytes.
		_, err = env.registry.CreateSession(ctx, "日本旅行二〇二六年夏")
		assert.NoError(t, err)
	})

	t.Run("publishes admin event", func(t *testing.T) {
		env := newTestEnv(t)
		sub := env.hub.Subscribe(events.AdminScope)
		defer env.hub.Unsubscribe(sub)

		_, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)

		select {
		case event := <-sub.Events():
			assert.Equal(t, models.AdminSessionCreated, event.Type)
		default:
			t.Error("expected an admin event")
		}
	})
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades phrases, listeners and ledger file", func(t *testing.T) {
		env := newTestEnv(t)

		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)
		_, err = env.registry.CreatePhrase(ctx, session.ID, "beach2026",
			time.Now(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		listener := env.hub.Subscribe(session.ID)

		require.NoError(t, env.registry.DeleteSession(ctx, session.ID))

		// Listener got the terminal event and then the close.
		event, open := <-listener.Events()
		require.True(t, open)
		assert.Equal(t, models.EventSessionGone, event.Type)
		_, open = <-listener.Events()
		assert.False(t, open, "expected listener channel to close")

		// Record, phrase and ledger file are gone.
		_, err = env.registry.GetSession(ctx, session.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = env.registry.ListPhrases(ctx, session.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = os.Stat(env.ledgers.Path(session.ID))
		assert.True(t, os.IsNotExist(err), "expected the ledger file to be removed")
	})

	t.Run("unexpired token no longer grants access", func(t *testing.T) {
		env := newTestEnv(t)

		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)
		token, err := env.registry.Switch(ctx, session.ID)
		require.NoError(t, err)

		require.NoError(t, env.registry.DeleteSession(ctx, session.ID))

		// The token still validates but the ledger is unreachable.
		claims, err := env.tokens.Validate(token)
		require.NoError(t, err)
		_, err = env.registry.Ledger(ctx, claims.SessionID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		env := newTestEnv(t)

		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)
		require.NoError(t, env.registry.DeleteSession(ctx, session.ID))
		assert.ErrorIs(t, env.registry.DeleteSession(ctx, session.ID), storage.ErrNotFound)
	})
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.registry.CreateSession(ctx, "trip")
	require.NoError(t, err)

	token, err := env.registry.Switch(ctx, session.ID)
	require.NoError(t, err)

	claims, err := env.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, session.ID, claims.SessionID)

	_, err = env.registry.Switch(ctx, "no-such-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreatePhrase(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("mints a user token bound to the phrase", func(t *testing.T) {
		env := newTestEnv(t)
		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)

		phrase, err := env.registry.CreatePhrase(ctx, session.ID, "beach2026", now, now.Add(time.Hour))
		require.NoError(t, err)
		require.NotEmpty(t, phrase.Token)

		claims, err := env.tokens.Validate(phrase.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleUser, claims.Role)
		assert.Equal(t, session.ID, claims.SessionID)
		assert.Equal(t, phrase.ID, claims.PhraseID)
	})

	t.Run("rejects malformed phrase text", func(t *testing.T) {
		env := newTestEnv(t)
		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)

		for _, text := range []string{"ab", "seventeen17chars!", "has space", "naïve"} {
			_, err := env.registry.CreatePhrase(ctx, session.ID, text, now, now.Add(time.Hour))
			assert.ErrorIs(t, err, ErrInvalidPhrase, "text %q", text)
		}
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		env := newTestEnv(t)
		session, err := env.registry.CreateSession(ctx, "trip")
		require.NoError(t, err)

		_, err = env.registry.CreatePhrase(ctx, session.ID, "beach2026", now.Add(time.Hour), now)
		assert.ErrorIs(t, err, storage.ErrInvalidWindow)

		_, err = env.registry.CreatePhrase(ctx, session.ID, "beach2026", now, now)
		assert.ErrorIs(t, err, storage.ErrInvalidWindow)
	})

	t.Run("active text conflicts across sessions", func(t *testing.T) {
		env := newTestEnv(t)
		first, err := env.registry.CreateSession(ctx, "first")
		require.NoError(t, err)
		second, err := env.registry.CreateSession(ctx, "second")
		require.NoError(t, err)

		_, err = env.registry.CreatePhrase(ctx, first.ID, "beach2026", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = env.registry.CreatePhrase(ctx, second.ID, "beach2026", now, now.Add(time.Hour))
		assert.ErrorIs(t, err, storage.ErrPhraseInUse)
	})
}

func TestDeletePhrase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.registry.CreateSession(ctx, "trip")
	require.NoError(t, err)
	phrase, err := env.registry.CreatePhrase(ctx, session.ID, "beach2026",
		time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, env.registry.DeletePhrase(ctx, phrase.ID))
	assert.ErrorIs(t, env.registry.DeletePhrase(ctx, phrase.ID), storage.ErrNotFound)

	// The freed text is immediately reusable.
	_, err = env.registry.CreatePhrase(ctx, session.ID, "beach2026",
		time.Now(), time.Now().Add(time.Hour))
	assert.NoError(t, err)
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	env := newTestEnv(t)

	session, err := env.registry.CreateSession(ctx, "trip")
	require.NoError(t, err)

	active, err := env.registry.CreatePhrase(ctx, session.ID, "active26", now.Add(-time.Minute), now.Add(time.Hour))
	require.NoError(t, err)
	_, err = env.registry.CreatePhrase(ctx, session.ID, "future26", now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)

	got, err := env.registry.Redeem(ctx, "active26")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	assert.Equal(t, active.Token, got.Token)

	// Outside the window or unknown both look identical to the caller.
	_, err = env.registry.Redeem(ctx, "future26")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = env.registry.Redeem(ctx, "missing1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
