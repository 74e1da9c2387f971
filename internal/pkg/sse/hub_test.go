package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToOwnerAndAll(t *testing.T) {
	hub := NewHub()
	own, cleanupOwn := hub.Subscribe("u1")
	defer cleanupOwn()
	other, cleanupOther := hub.Subscribe("u2")
	defer cleanupOther()
	all, cleanupAll := hub.Subscribe(AllUsers)
	defer cleanupAll()

	hub.Publish("u1", Event{UserID: "u1", Event: "attendance.checked_in"})

	require.Len(t, own, 1)
	require.Len(t, all, 1)
	assert.Len(t, other, 0)
	assert.Equal(t, "attendance.checked_in", (<-own).Event)
}

func TestHub_CleanupIsIdempotent(t *testing.T) {
	hub := NewHub()
	_, cleanup := hub.Subscribe("u1")
	assert.Equal(t, 1, hub.SubscriberCount("u1"))

	cleanup()
	assert.NotPanics(t, cleanup)
	assert.Equal(t, 0, hub.SubscriberCount("u1"))
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("u1")
	defer cleanup()

	for i := 0; i < hub.bufferSize+5; i++ {
		hub.Publish("u1", Event{UserID: "u1"})
	}
	assert.Len(t, ch, hub.bufferSize)
}

func TestHub_CloseEndsStreams(t *testing.T) {
	hub := NewHub()
	own, cleanupOwn := hub.Subscribe("u1")
	all, cleanupAll := hub.Subscribe(AllUsers)

	hub.Close()

	_, open := <-own
	assert.False(t, open)
	_, open = <-all
	assert.False(t, open)
	assert.NotPanics(t, cleanupOwn)
	assert.NotPanics(t, cleanupAll)
	assert.NotPanics(t, hub.Close)

	late, cleanupLate := hub.Subscribe("u1")
	defer cleanupLate()
	_, open = <-late
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Publish("u1", Event{UserID: "u1"}) })
	assert.Equal(t, 0, hub.SubscriberCount("u1"))
}
