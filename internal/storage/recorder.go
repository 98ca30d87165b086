package storage

import (
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/session"
)

// Recorder persists session messages as scrollback. Subscribe it to
// events.EventMessageAdded.
type Recorder struct {
	storage *Storage
}

// NewRecorder creates a Recorder writing to s
func NewRecorder(s *Storage) *Recorder {
	return &Recorder{storage: s}
}

// OnEvent implements events.Subscriber
func (r *Recorder) OnEvent(event events.Event) {
	if event.Type != events.EventMessageAdded {
		return
	}
	msg, ok := event.Data["message"].(session.Message)
	if !ok {
		return
	}
	server, _ := event.Data["server"].(string)
	channel, _ := event.Data["channel"].(string)

	record := MessageRecord{
		Server:    server,
		Channel:   channel,
		Author:    msg.Author,
		Content:   msg.Content,
		Kind:      string(msg.Kind),
		IsAction:  msg.IsAction,
		Timestamp: msg.Timestamp,
	}
	if err := r.storage.WriteMessage(record); err != nil {
		logger.Log.Warn().Err(err).Str("channel", channel).Msg("Failed to record message")
	}
}

// Replay loads stored scrollback for a channel into the session.
func (r *Recorder) Replay(s *session.Session, ch *session.Channel, server string, limit int) (int, error) {
	records, err := r.storage.GetMessages(server, ch.Name, limit)
	if err != nil {
		return 0, err
	}
	history := make([]session.Message, 0, len(records))
	for _, rec := range records {
		history = append(history, session.Message{
			Content:   rec.Content,
			Author:    rec.Author,
			Kind:      session.MessageKind(rec.Kind),
			IsAction:  rec.IsAction,
			Timestamp: rec.Timestamp,
		})
	}
	if err := s.RestoreHistory(ch.ID, history); err != nil {
		return 0, err
	}
	return len(history), nil
}
