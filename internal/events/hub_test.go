package events

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mzhao/aapay/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishFanOut(t *testing.T) {
	hub := NewHub()

	a := hub.Subscribe("session-1")
	b := hub.Subscribe("session-1")
	other := hub.Subscribe("session-2")
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)
	defer hub.Unsubscribe(other)

	event := models.Event{Type: models.EventUserUpdate, Action: models.ActionUserAdd}
	hub.Publish("session-1", event)

	for _, sub := range []*Subscriber{a, b} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, models.EventUserUpdate, got.Type)
		default:
			t.Error("expected event to be delivered")
		}
	}

	select {
	case got := <-other.Events():
		t.Errorf("unexpected event on other scope: %v", got)
	default:
	}
}

func TestPublishUnknownScope(t *testing.T) {
	hub := NewHub()
	// Publishing into a scope with no listeners must not panic or block.
	hub.Publish("nobody-home", models.Event{Type: models.EventUserUpdate})
}

func TestSlowListenerPruned(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("session-1")

	// Fill the buffer, then one more: the overflowing publish prunes the
	// listener instead of blocking.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish("session-1", models.Event{Type: models.EventUserUpdate})
	}

	assert.Equal(t, 0, hub.ListenerCount())

	// The buffered events are still readable, then the channel closes.
	n := 0
	for range sub.Events() {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)

	// Unsubscribing a pruned listener is a no-op.
	hub.Unsubscribe(sub)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("session-1")

	hub.Unsubscribe(sub)
	_, open := <-sub.Events()
	assert.False(t, open, "expected channel to be closed")

	hub.Unsubscribe(sub) // second call is a no-op
	assert.Equal(t, 0, hub.ListenerCount())
}

func TestCloseScope(t *testing.T) {
	hub := NewHub()

	a := hub.Subscribe("session-1")
	b := hub.Subscribe("session-1")
	survivor := hub.Subscribe("session-2")
	defer hub.Unsubscribe(survivor)

	final := models.Event{Type: models.EventSessionGone, Message: "This session has been deleted"}
	hub.CloseScope("session-1", final)

	for _, sub := range []*Subscriber{a, b} {
		got, open := <-sub.Events()
		require.True(t, open, "expected the final event before close")
		assert.Equal(t, models.EventSessionGone, got.Type)

		_, open = <-sub.Events()
		assert.False(t, open, "expected channel to be closed after the final event")
	}

	assert.Equal(t, 1, hub.ListenerCount())
}

func TestCloseScopeIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("session-1")

	final := models.Event{Type: models.EventSessionGone}
	hub.CloseScope("session-1", final)
	hub.CloseScope("session-1", final)

	// Exactly one final event arrives despite the double close.
	n := 0
	for range sub.Events() {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestListenerCount(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.ListenerCount())

	subs := []*Subscriber{
		hub.Subscribe("session-1"),
		hub.Subscribe("session-1"),
		hub.Subscribe(AdminScope),
	}
	assert.Equal(t, 3, hub.ListenerCount())

	hub.Unsubscribe(subs[0])
	assert.Equal(t, 2, hub.ListenerCount())

	for _, sub := range subs[1:] {
		hub.Unsubscribe(sub)
	}
	assert.Equal(t, 0, hub.ListenerCount())
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := fmt.Sprintf("session-%d", i%2)
			sub := hub.Subscribe(scope)
			for j := 0; j < 50; j++ {
				hub.Publish(scope, models.Event{Type: models.EventExpenseUpdate})
			}
			hub.Unsubscribe(sub)
			// Drain whatever arrived before the close.
			for range sub.Events() {
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ListenerCount())
}
