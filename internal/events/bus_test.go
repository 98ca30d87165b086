package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) OnEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestNew(t *testing.T) {
	e := New(EventChannelRead, EventSourceSession, nil)
	assert.Equal(t, EventChannelRead, e.Type)
	assert.Equal(t, EventSourceSession, e.Source)
	assert.NotNil(t, e.Data)
	assert.False(t, e.Timestamp.IsZero())
}

func TestEmitSync_TypedAndWildcard(t *testing.T) {
	bus := NewEventBus()
	typed, all := &collector{}, &collector{}
	bus.Subscribe(EventMessageAdded, typed)
	bus.Subscribe(Wildcard, all)

	bus.EmitSync(New(EventMessageAdded, EventSourceSession, nil))
	bus.EmitSync(New(EventUserJoined, EventSourceSession, nil))

	assert.Equal(t, []string{EventMessageAdded}, typed.types())
	assert.Equal(t, []string{EventMessageAdded, EventUserJoined}, all.types())
}

func TestEmit_Async(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventMention, SubscriberFunc(func(e Event) { got <- e }))

	bus.Emit(New(EventMention, EventSourceSession, map[string]interface{}{"channel": "#go"}))

	select {
	case e := <-got:
		assert.Equal(t, "#go", e.Data["channel"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	first, second := &collector{}, &collector{}
	bus.Subscribe(EventUserNick, first)
	bus.Subscribe(EventUserNick, second)

	bus.Unsubscribe(EventUserNick, first)
	bus.EmitSync(New(EventUserNick, EventSourceSession, nil))

	assert.Empty(t, first.types())
	require.Len(t, second.types(), 1)

	// Function subscribers stay put
	calls := 0
	fn := SubscriberFunc(func(Event) { calls++ })
	bus.Subscribe(EventUserNick, fn)
	bus.Unsubscribe(EventUserNick, fn)
	bus.EmitSync(New(EventUserNick, EventSourceSession, nil))
	assert.Equal(t, 1, calls)
}
