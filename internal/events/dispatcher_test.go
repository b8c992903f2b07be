package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_DeliversToSubscribersOfType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventSessionStarted, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventSessionStarted}))
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventSessionRevoked}))
	assert.Equal(t, []EventType{EventSessionStarted}, got)
}

func TestDispatcher_RunsAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	first := errors.New("first")
	calls := 0
	d.Subscribe(EventSessionRevoked, func(context.Context, Event) error {
		calls++
		return first
	})
	d.Subscribe(EventSessionRevoked, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSessionRevoked})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}
