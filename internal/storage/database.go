package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/matt0x6f/cascade-core/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const insertMessage = `INSERT INTO messages (server, channel, author, content, kind, is_action, timestamp)
          VALUES (:server, :channel, :author, :content, :kind, :is_action, :timestamp)`

// Storage handles database operations. Scrollback writes are buffered and
// flushed in batches; everything else goes straight to the database.
type Storage struct {
	db            *sqlx.DB
	writeBuffer   chan MessageRecord
	bufferSize    int
	flushInterval time.Duration
	mu            sync.Mutex // serialises flushes
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closed        bool
	closedMu      sync.RWMutex
}

// NewStorage opens (creating if needed) the database at dbPath and starts
// the scrollback flush loop.
func NewStorage(dbPath string, bufferSize int, flushInterval time.Duration) (*Storage, error) {
	// WAL for concurrent reads while the flush loop writes
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection in WAL mode
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 1
	}
	s := &Storage{
		db:            db,
		writeBuffer:   make(chan MessageRecord, bufferSize),
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Close flushes buffered scrollback and closes the database. It is safe to
// call more than once.
func (s *Storage) Close() error {
	s.closedMu.Lock()
	if s.closed {
		s.closedMu.Unlock()
		return nil
	}
	s.closed = true
	s.closedMu.Unlock()

	// flushLoop drains the buffer on its way out
	close(s.stopCh)
	s.wg.Wait()

	return s.db.Close()
}

func (s *Storage) isClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

// flushLoop periodically flushes the write buffer
func (s *Storage) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.flushBuffer()
			return
		case <-ticker.C:
			s.flushBuffer()
		}
	}
}

// flushBuffer writes every queued message in one batch
func (s *Storage) flushBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]MessageRecord, 0, s.bufferSize)
	for {
		select {
		case msg := <-s.writeBuffer:
			messages = append(messages, msg)
			continue
		default:
		}
		break
	}
	if len(messages) == 0 {
		return
	}

	if _, err := s.db.NamedExec(insertMessage, messages); err != nil {
		logger.Log.Error().Err(err).Int("count", len(messages)).Msg("Error flushing messages")
		return
	}
	logger.Log.Debug().Int("count", len(messages)).Msg("Flushed messages")
}

// WriteMessage queues a message for batch insertion
func (s *Storage) WriteMessage(msg MessageRecord) error {
	// Close waits for queued writes to land before the final flush
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return fmt.Errorf("storage is closed")
	}
	msg.Timestamp = normalizeTime(msg.Timestamp)

	select {
	case s.writeBuffer <- msg:
		return nil
	default:
		// Buffer full, flush immediately
		s.flushBuffer()
		select {
		case s.writeBuffer <- msg:
			return nil
		default:
			return fmt.Errorf("write buffer full and flush failed")
		}
	}
}

// WriteMessageSync writes a message immediately, after anything queued
// before it.
func (s *Storage) WriteMessageSync(msg MessageRecord) error {
	if s.isClosed() {
		return fmt.Errorf("storage is closed")
	}
	msg.Timestamp = normalizeTime(msg.Timestamp)

	s.flushBuffer()
	if _, err := s.db.NamedExec(insertMessage, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Flush writes queued messages now
func (s *Storage) Flush() {
	s.flushBuffer()
}

// GetMessages returns the last limit messages of a channel in chronological
// order. Channel names match case-insensitively.
func (s *Storage) GetMessages(server, channel string, limit int) ([]MessageRecord, error) {
	var messages []MessageRecord
	err := s.db.Select(&messages,
		`SELECT id, server, channel, author, content, kind, is_action, timestamp FROM messages
		 WHERE server = ? AND channel = ? COLLATE NOCASE
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		server, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteMessages drops a channel's scrollback
func (s *Storage) DeleteMessages(server, channel string) error {
	_, err := s.db.Exec("DELETE FROM messages WHERE server = ? AND channel = ? COLLATE NOCASE", server, channel)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

// normalizeTime stamps zero times and stores everything in UTC so that
// timestamps sort correctly as text
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
