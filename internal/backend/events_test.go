package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/troubleshooter/internal/model"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	a, stopA := b.Subscribe()
	c, stopC := b.Subscribe()
	defer stopA()
	defer stopC()

	b.Publish(model.AuthEvent{Type: model.EventSignedIn})

	require.Equal(t, model.EventSignedIn, (<-a).Type)
	require.Equal(t, model.EventSignedIn, (<-c).Type)
}

func TestBroadcaster_DisposeIsIdempotent(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, stop := b.Subscribe()
	stop()
	stop()

	_, ok := <-ch
	require.False(t, ok, "channel must be closed after dispose")

	// publishing after dispose must not panic
	b.Publish(model.AuthEvent{Type: model.EventSignedOut})
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, stop := b.Subscribe()
	defer stop()

	for i := 0; i < subscriberBufferSize+5; i++ {
		b.Publish(model.AuthEvent{Type: model.EventTokenRefreshed})
	}
	require.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, stop := b.Subscribe()
	b.Close()
	stop()
	_, ok := <-ch
	require.False(t, ok)

	late, _ := b.Subscribe()
	_, ok = <-late
	require.False(t, ok)
}
