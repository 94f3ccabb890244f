package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishToAllSubscribers(t *testing.T) {
	b := NewBroker[string]()
	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish("created")

	assert.Equal(t, "created", <-first)
	assert.Equal(t, "created", <-second)
	assert.Equal(t, 2, b.Len())
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker[int]()
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	b.Unsubscribe(ch) // повторный вызов безопасен

	_, ok := <-ch
	assert.False(t, ok, "Expected channel to be closed")
	assert.Equal(t, 0, b.Len())
}

func TestBroker_DropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker[int]()
	ch := b.Subscribe()

	for i := 0; i < defaultBuffer+5; i++ {
		b.Publish(i)
	}

	require.Len(t, ch, defaultBuffer)
	assert.Equal(t, 0, <-ch, "Expected the oldest events to be kept")
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[int]()
	ch := b.Subscribe()

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "Expected subscription after Close to be closed")

	b.Publish(1) // без подписчиков не паникует
}
