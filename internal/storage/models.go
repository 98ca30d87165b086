package storage

import "time"

// ServerRecord is a saved server configuration. The password lives in the
// keychain, never in the database.
type ServerRecord struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Host        string    `db:"host" json:"host"`
	Port        int       `db:"port" json:"port"`
	Nickname    string    `db:"nickname" json:"nickname"`
	AutoConnect bool      `db:"auto_connect" json:"auto_connect"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Channels is filled from server_channels
	Channels []string `db:"-" json:"channels"`
}

// ChannelRecord is a channel to join when its server connects
type ChannelRecord struct {
	ID        int64     `db:"id" json:"id"`
	ServerID  int64     `db:"server_id" json:"server_id"`
	Name      string    `db:"name" json:"name"`
	AutoJoin  bool      `db:"auto_join" json:"auto_join"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessageRecord is a line of persisted scrollback. Session IDs do not
// survive a restart, so messages are keyed by server and channel name.
type MessageRecord struct {
	ID        int64     `db:"id" json:"id"`
	Server    string    `db:"server" json:"server"`
	Channel   string    `db:"channel" json:"channel"`
	Author    string    `db:"author" json:"author"`
	Content   string    `db:"content" json:"content"`
	Kind      string    `db:"kind" json:"kind"` // message, system, join, leave, nick, error
	IsAction  bool      `db:"is_action" json:"is_action"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// Setting is a key/value pair from the settings table
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
