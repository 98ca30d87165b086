// Package notify raises desktop notifications for mentions and updates.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
)

// maxBody keeps notification bodies short
const maxBody = 200

// Notifier is an events.Subscriber for events.EventMention and
// events.EventUpdateAvailable.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	send    func(title, message string, icon any) error
}

// New creates an enabled notifier that posts as appName
func New(appName string) *Notifier {
	if appName != "" {
		beeep.AppName = appName
	}
	return &Notifier{enabled: true, send: beeep.Notify}
}

// SetEnabled turns notifications on or off
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Enabled reports whether notifications are posted
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// OnEvent implements events.Subscriber
func (n *Notifier) OnEvent(event events.Event) {
	if !n.Enabled() {
		return
	}

	var title, body string
	switch event.Type {
	case events.EventMention:
		msg, ok := event.Data["message"].(session.Message)
		if !ok {
			return
		}
		channel, _ := event.Data["channel"].(string)
		title = fmt.Sprintf("%s mentioned you in %s", msg.Author, channel)
		body = msg.Content
		if msg.IsAction {
			body = "* " + msg.Author + " " + msg.Content
		}
	case events.EventUpdateAvailable:
		version, _ := event.Data["version"].(string)
		title = "Update available"
		body = fmt.Sprintf("Version %s is ready to download. Use /update download.", version)
	default:
		return
	}

	if runes := []rune(body); len(runes) > maxBody {
		body = string(runes[:maxBody]) + "…"
	}
	if err := n.send(title, body, ""); err != nil {
		logger.Log.Warn().Err(err).Str("event", event.Type).Msg("Failed to post notification")
	}
}
