package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrServerNotFound is returned when no saved server has the given name
var ErrServerNotFound = errors.New("saved server not found")

// SaveServer inserts or updates a server by name and replaces its auto-join
// channel list. server.ID is set on return.
func (s *Storage) SaveServer(server *ServerRecord) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if server.CreatedAt.IsZero() {
		server.CreatedAt = now
	}
	server.UpdatedAt = now

	_, err = tx.NamedExec(
		`INSERT INTO servers (name, host, port, nickname, auto_connect, created_at, updated_at)
		 VALUES (:name, :host, :port, :nickname, :auto_connect, :created_at, :updated_at)
		 ON CONFLICT(name) DO UPDATE SET
		     host = excluded.host,
		     port = excluded.port,
		     nickname = excluded.nickname,
		     auto_connect = excluded.auto_connect,
		     updated_at = excluded.updated_at`,
		server)
	if err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}
	if err := tx.Get(&server.ID, "SELECT id FROM servers WHERE name = ?", server.Name); err != nil {
		return fmt.Errorf("failed to get server ID: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM server_channels WHERE server_id = ?", server.ID); err != nil {
		return fmt.Errorf("failed to clear channels: %w", err)
	}
	for _, name := range server.Channels {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO server_channels (server_id, name, auto_join, created_at) VALUES (?, ?, 1, ?)",
			server.ID, name, now); err != nil {
			return fmt.Errorf("failed to save channel %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit server: %w", err)
	}
	return nil
}

// GetServers returns all saved servers with their auto-join channels
func (s *Storage) GetServers() ([]ServerRecord, error) {
	var servers []ServerRecord
	err := s.db.Select(&servers,
		"SELECT id, name, host, port, nickname, auto_connect, created_at, updated_at FROM servers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get servers: %w", err)
	}
	for i := range servers {
		if servers[i].Channels, err = s.autoJoinChannels(servers[i].ID); err != nil {
			return nil, err
		}
	}
	return servers, nil
}

// GetServer returns a saved server by name
func (s *Storage) GetServer(name string) (*ServerRecord, error) {
	var server ServerRecord
	err := s.db.Get(&server,
		"SELECT id, name, host, port, nickname, auto_connect, created_at, updated_at FROM servers WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server.Channels, err = s.autoJoinChannels(server.ID); err != nil {
		return nil, err
	}
	return &server, nil
}

// DeleteServer removes a saved server and its channels
func (s *Storage) DeleteServer(name string) error {
	result, err := s.db.Exec("DELETE FROM servers WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	return nil
}

// GetChannels returns every stored channel of a server
func (s *Storage) GetChannels(serverID int64) ([]ChannelRecord, error) {
	var channels []ChannelRecord
	err := s.db.Select(&channels,
		"SELECT id, server_id, name, auto_join, created_at FROM server_channels WHERE server_id = ? ORDER BY id", serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels: %w", err)
	}
	return channels, nil
}

// SetChannelAutoJoin adds a channel to a server's list or toggles it
func (s *Storage) SetChannelAutoJoin(serverID int64, name string, autoJoin bool) error {
	_, err := s.db.Exec(
		`INSERT INTO server_channels (server_id, name, auto_join, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(server_id, name) DO UPDATE SET auto_join = excluded.auto_join`,
		serverID, name, autoJoin, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update channel auto-join: %w", err)
	}
	return nil
}

func (s *Storage) autoJoinChannels(serverID int64) ([]string, error) {
	names := []string{}
	err := s.db.Select(&names,
		"SELECT name FROM server_channels WHERE server_id = ? AND auto_join = 1 ORDER BY id", serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auto-join channels: %w", err)
	}
	return names, nil
}
