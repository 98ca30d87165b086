package validation

import (
	"fmt"
	"strings"
)

// ValidateServerConfig validates the parameters used to establish a server session
func ValidateServerConfig(host string, port int, nickname string, channels []string) error {
	if err := ValidateServerAddress(host, port); err != nil {
		return err
	}
	if err := ValidateNickname(nickname); err != nil {
		return err
	}
	for i, channel := range channels {
		if err := ValidateChannelName(channel); err != nil {
			return fmt.Errorf("channel %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateChannelName validates an IRC channel name
func ValidateChannelName(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel name is required")
	}
	// IRC channels must start with #, &, +, or !
	if !IsChannelName(channel) {
		return fmt.Errorf("channel name must start with #, &, +, or !")
	}
	// Channel names have length limits (typically 50 chars, but varies by server)
	if len(channel) > 200 {
		return fmt.Errorf("channel name too long (max 200 characters)")
	}
	// Check for invalid characters
	if strings.ContainsAny(channel, " \x00\x07\x0A\x0D,") {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}

// IsChannelName reports whether target carries a channel prefix
func IsChannelName(target string) bool {
	return len(target) > 0 && strings.ContainsRune("#&+!", rune(target[0]))
}

// ValidateNickname validates an IRC nickname
func ValidateNickname(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	if IsChannelName(nickname) {
		return fmt.Errorf("nickname cannot start with a channel prefix")
	}
	if strings.ContainsAny(nickname[:1], "0123456789-:") {
		return fmt.Errorf("nickname cannot start with a digit, '-' or ':'")
	}
	if strings.ContainsAny(nickname, " ,*?!@.\x00\x07\x0A\x0D") {
		return fmt.Errorf("nickname contains invalid characters")
	}
	return nil
}

// ValidateServerAddress validates a server address and port
func ValidateServerAddress(address string, port int) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("server address is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
