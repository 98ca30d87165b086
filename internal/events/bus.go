package events

import (
	"sync"
	"time"
)

// EventSource represents the source of an event
type EventSource string

const (
	EventSourceSession EventSource = "session"
	EventSourceCommand EventSource = "command"
	EventSourceUpdater EventSource = "updater"
	EventSourceSystem  EventSource = "system"
)

// Session event types
const (
	EventServerAdded      = "server.added"
	EventServerRemoved    = "server.removed"
	EventServerConnection = "server.connection"
	EventChannelAdded     = "channel.added"
	EventChannelRemoved   = "channel.removed"
	EventChannelRead      = "channel.read"
	EventChannelTopic     = "channel.topic"
	EventMessageAdded     = "message.added"
	EventMention          = "message.mention"
	EventUserJoined       = "user.joined"
	EventUserParted       = "user.parted"
	EventUserRemoved      = "user.removed"
	EventUserNick         = "user.nick"
	EventUserStatus       = "user.status"
)

// Update lifecycle event types
const (
	EventUpdateChecking    = "update.checking"
	EventUpdateAvailable   = "update.available"
	EventUpdateUpToDate    = "update.uptodate"
	EventUpdateDismissed   = "update.dismissed"
	EventUpdateDownloading = "update.downloading"
	EventUpdateError       = "update.error"
)

// Wildcard subscribes to every event type
const Wildcard = "*"

// Event represents a generic event
type Event struct {
	Type      string
	Data      map[string]interface{}
	Timestamp time.Time
	Source    EventSource
}

// New builds an event stamped with the current time
func New(eventType string, source EventSource, data map[string]interface{}) Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// Subscriber is an interface for event subscribers
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface
type SubscriberFunc func(event Event)

// OnEvent calls f(event)
func (f SubscriberFunc) OnEvent(event Event) {
	f(event)
}

// EventBus manages event routing
type EventBus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe subscribes a subscriber to a specific event type
func (eb *EventBus) Subscribe(eventType string, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// Unsubscribe removes a subscriber from an event type.
// Function subscribers cannot be compared and are never removed.
func (eb *EventBus) Unsubscribe(eventType string, subscriber Subscriber) {
	if _, ok := subscriber.(SubscriberFunc); ok {
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if _, ok := sub.(SubscriberFunc); ok {
			continue
		}
		if sub == subscriber {
			eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// snapshot returns the specific and wildcard subscribers for an event type
func (eb *EventBus) snapshot(eventType string) []Subscriber {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := make([]Subscriber, 0, len(eb.subscribers[eventType])+len(eb.subscribers[Wildcard]))
	subs = append(subs, eb.subscribers[eventType]...)
	if eventType != Wildcard {
		subs = append(subs, eb.subscribers[Wildcard]...)
	}
	return subs
}

// Emit delivers an event to all subscribers, each on its own goroutine
func (eb *EventBus) Emit(event Event) {
	for _, sub := range eb.snapshot(event.Type) {
		go sub.OnEvent(event)
	}
}

// EmitSync emits an event synchronously (for testing or when order matters)
func (eb *EventBus) EmitSync(event Event) {
	for _, sub := range eb.snapshot(event.Type) {
		sub.OnEvent(event)
	}
}
