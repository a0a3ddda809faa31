package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublish(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(EMTUpdated, EMTUpdatedEvent{Clase: "multicanal", Rows: 7, Ts: 1})
	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, EMTUpdated, ev.Name)
		payload, err := DecodeAs[EMTUpdatedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, "multicanal", payload.Clase)
		assert.Equal(t, 7, payload.Rows)
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(ConfigReloaded, ConfigReloadedEvent{OK: true, Ts: int64(i)})
	}
	assert.Len(t, ch, subscriberBuffer)

	first, err := DecodeAs[ConfigReloadedEvent](<-ch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Ts)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	assert.NotPanics(t, func() { h.Unsubscribe(ch) })
}

func TestNilHub(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(ConfigReloaded, nil) })
}

func TestDecodeAsEmpty(t *testing.T) {
	v, err := DecodeAs[CalibrationComputedEvent](Event{Name: CalibrationComputed})
	require.NoError(t, err)
	assert.Equal(t, CalibrationComputedEvent{}, v)

	_, err = DecodeAs[CalibrationComputedEvent](Event{Data: []byte("{")})
	assert.Error(t, err)
}
