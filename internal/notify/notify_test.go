package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type posted struct {
	title, body string
}

func newTestNotifier() (*Notifier, *[]posted) {
	var sent []posted
	n := &Notifier{enabled: true, send: func(title, message string, _ any) error {
		sent = append(sent, posted{title, message})
		return nil
	}}
	return n, &sent
}

func mentionEvent(msg session.Message) events.Event {
	return events.New(events.EventMention, events.EventSourceSession, map[string]interface{}{
		"channel": "#go",
		"message": msg,
	})
}

func TestMention(t *testing.T) {
	n, sent := newTestNotifier()
	n.OnEvent(mentionEvent(session.Message{Author: "bob", Content: "alice: ping"}))

	require.Len(t, *sent, 1)
	assert.Equal(t, "bob mentioned you in #go", (*sent)[0].title)
	assert.Equal(t, "alice: ping", (*sent)[0].body)
}

func TestMention_ActionAndTruncation(t *testing.T) {
	n, sent := newTestNotifier()
	n.OnEvent(mentionEvent(session.Message{Author: "bob", Content: "pokes alice", IsAction: true}))
	n.OnEvent(mentionEvent(session.Message{Author: "bob", Content: strings.Repeat("a", 500)}))

	require.Len(t, *sent, 2)
	assert.Equal(t, "* bob pokes alice", (*sent)[0].body)
	assert.True(t, strings.HasSuffix((*sent)[1].body, "…"))
	assert.Len(t, []rune((*sent)[1].body), maxBody+1)
}

func TestUpdateAvailable(t *testing.T) {
	n, sent := newTestNotifier()
	n.OnEvent(events.New(events.EventUpdateAvailable, events.EventSourceUpdater, map[string]interface{}{"version": "1.2.0"}))

	require.Len(t, *sent, 1)
	assert.Equal(t, "Update available", (*sent)[0].title)
	assert.Contains(t, (*sent)[0].body, "1.2.0")
}

func TestIgnoredAndDisabled(t *testing.T) {
	n, sent := newTestNotifier()
	n.OnEvent(events.New(events.EventMessageAdded, events.EventSourceSession, nil))
	n.OnEvent(events.New(events.EventMention, events.EventSourceSession, map[string]interface{}{"message": "not a message"}))
	assert.Empty(t, *sent)

	n.SetEnabled(false)
	assert.False(t, n.Enabled())
	n.OnEvent(mentionEvent(session.Message{Author: "bob", Content: "alice"}))
	assert.Empty(t, *sent)
}

func TestSendFailureIsLogged(t *testing.T) {
	n := &Notifier{enabled: true, send: func(string, string, any) error { return errors.New("no dbus") }}
	assert.NotPanics(t, func() {
		n.OnEvent(mentionEvent(session.Message{Author: "bob", Content: "alice"}))
	})
}
