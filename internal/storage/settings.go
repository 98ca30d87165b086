package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSetting returns a setting's value and whether it exists
func (s *Storage) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting inserts or replaces a setting
func (s *Storage) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting; a missing key is not an error
func (s *Storage) DeleteSetting(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// GetSettings returns all settings ordered by key
func (s *Storage) GetSettings() ([]Setting, error) {
	var settings []Setting
	if err := s.db.Select(&settings, "SELECT key, value, updated_at FROM settings ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// SettingsStore adapts Storage to the Get/Set store used by the updater
type SettingsStore struct {
	storage *Storage
}

// Settings returns a key/value view of the settings table
func (s *Storage) Settings() SettingsStore {
	return SettingsStore{storage: s}
}

// Get returns a setting's value and whether it exists
func (st SettingsStore) Get(key string) (string, bool, error) {
	return st.storage.GetSetting(key)
}

// Set stores a setting
func (st SettingsStore) Set(key, value string) error {
	return st.storage.SetSetting(key, value)
}
