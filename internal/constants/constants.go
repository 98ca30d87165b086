package constants

import "time"

// Update check timing
const (
	// UpdateCheckDelay is the initial delay before the first background update check
	UpdateCheckDelay = 5 * time.Second

	// UpdateCheckInterval is the default period between background update checks
	UpdateCheckInterval = 6 * time.Hour

	// UpdateCheckTimeout bounds a single fetch from the version source
	UpdateCheckTimeout = 15 * time.Second
)

// Message storage
const (
	// MessageBufferSize is the default capacity of the scrollback write buffer
	MessageBufferSize = 100

	// MessageFlushInterval is how often buffered scrollback is written
	MessageFlushInterval = 5 * time.Second

	// ScrollbackLimit is the number of stored messages replayed into a channel
	ScrollbackLimit = 200
)

// Persistence keys shared with the settings store
const (
	SettingLastChecked      = "lastChecked"
	SettingDismissedVersion = "dismissedVersion"
)

// DefaultPort is used when a server config omits the port
const DefaultPort = 6667
