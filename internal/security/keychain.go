// Package security keeps server passwords in the OS keychain.
package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service entries are filed under
const DefaultService = "cascade-chat"

// Keychain stores server passwords, one entry per saved server
type Keychain struct {
	service string
}

// NewKeychain creates a keychain using service, or DefaultService when empty
func NewKeychain(service string) *Keychain {
	if service == "" {
		service = DefaultService
	}
	return &Keychain{service: service}
}

// account names the keychain entry for a server. Server names are
// case-insensitive, so is the account.
func account(server string) string {
	return "server:" + strings.ToLower(strings.TrimSpace(server))
}

// StorePassword saves a server password. An empty password deletes it.
func (k *Keychain) StorePassword(server, password string) error {
	if password == "" {
		return k.DeletePassword(server)
	}
	if err := keyring.Set(k.service, account(server), password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword returns a server password, or "" when none is stored
func (k *Keychain) GetPassword(server string) (string, error) {
	password, err := keyring.Get(k.service, account(server))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes a server password; a missing entry is not an error
func (k *Keychain) DeletePassword(server string) error {
	err := keyring.Delete(k.service, account(server))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
