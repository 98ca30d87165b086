// Package update tracks whether a newer release of the client exists and
// walks the user through dismissing or downloading it.
package update

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"golang.org/x/sync/singleflight"
)

// State is the controller's lifecycle state
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateUpToDate    State = "up_to_date"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateDismissed   State = "dismissed"
)

// ErrInvalidTransition is returned when an operation is not allowed from the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid update state transition")

// Snapshot is a read-only view of the controller for presentation.
type Snapshot struct {
	State           State       `json:"state"`
	UpdateAvailable bool        `json:"updateAvailable"`
	UpdateInfo      *UpdateInfo `json:"updateInfo,omitempty"`
	IsChecking      bool        `json:"isChecking"`
	LastChecked     string      `json:"lastChecked,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Options configures a Controller
type Options struct {
	// CurrentVersion is the running version or tag, e.g. "0.2.4" or "v0.2.4-build5"
	CurrentVersion string
	Source         VersionSource
	Downloader     Downloader
	Store          Store

	// Bus receives update.* events; optional
	Bus *events.EventBus

	// Timeout bounds one fetch; defaults to constants.UpdateCheckTimeout
	Timeout time.Duration
}

// Controller is the update lifecycle state machine. It is safe for
// concurrent use; overlapping checks share a single fetch.
type Controller struct {
	mu          sync.Mutex
	state       State
	prior       State // restored when a check fails
	info        *UpdateInfo
	lastChecked string
	errMsg      string
	dismissed   string // tag of the dismissed release
	seq         uint64 // bumped by every check; older results are dropped

	current    string
	source     VersionSource
	downloader Downloader
	store      Store
	bus        *events.EventBus
	timeout    time.Duration
	flights    singleflight.Group
	now        func() time.Time
}

// NewController creates a controller in the Idle state, restoring
// lastChecked and the dismissed version from the store.
func NewController(opts Options) *Controller {
	c := &Controller{
		state:      StateIdle,
		current:    opts.CurrentVersion,
		source:     opts.Source,
		downloader: opts.Downloader,
		store:      opts.Store,
		bus:        opts.Bus,
		timeout:    opts.Timeout,
		now:        time.Now,
	}
	if c.timeout <= 0 {
		c.timeout = constants.UpdateCheckTimeout
	}
	c.lastChecked = c.load(constants.SettingLastChecked)
	c.dismissed = c.load(constants.SettingDismissedVersion)
	return c
}

func (c *Controller) load(key string) string {
	if c.store == nil {
		return ""
	}
	value, ok, err := c.store.Get(key)
	if err != nil {
		logger.Log.Warn().Err(err).Str("key", key).Msg("Failed to load update setting")
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (c *Controller) save(key, value string) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// publish must be called with c.mu held
func (c *Controller) publish(eventType string, data map[string]interface{}) {
	if c.bus == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["state"] = string(c.state)
	c.bus.Emit(events.New(eventType, events.EventSourceUpdater, data))
}

// CurrentVersion returns the version the controller compares against
func (c *Controller) CurrentVersion() string {
	return c.current
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the presentation view of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           c.state,
		UpdateAvailable: c.state == StateAvailable,
		IsChecking:      c.state == StateChecking,
		LastChecked:     c.lastChecked,
		Error:           c.errMsg,
	}
	if c.info != nil {
		info := *c.info
		snap.UpdateInfo = &info
	}
	return snap
}

// CheckForUpdates asks the version source for the latest release. It is
// allowed from Idle, UpToDate and Dismissed; while a check is already
// running the caller joins it instead of fetching again.
//
// The returned error is the check's *VersionCheckError, ctx.Err() when the
// caller stops waiting, or ErrInvalidTransition.
func (c *Controller) CheckForUpdates(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	switch c.state {
	case StateChecking:
	case StateIdle, StateUpToDate, StateDismissed:
		c.beginLocked()
	default:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: cannot check for updates while %s", ErrInvalidTransition, snap.State)
	}
	seq := c.seq
	c.mu.Unlock()

	return c.wait(ctx, seq)
}

// ForceCheck starts a fresh check even when one is already running. The
// running check's result is discarded when it arrives.
func (c *Controller) ForceCheck(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state == StateDownloading {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: cannot check for updates while %s", ErrInvalidTransition, snap.State)
	}
	c.beginLocked()
	seq := c.seq
	c.mu.Unlock()

	return c.wait(ctx, seq)
}

func (c *Controller) beginLocked() {
	if c.state != StateChecking {
		c.prior = c.state
	}
	if c.prior == StateAvailable {
		// A forced check from Available re-evaluates from scratch
		c.prior = StateIdle
	}
	c.state = StateChecking
	c.info = nil
	c.seq++
	logger.Log.Info().Str("current", c.current).Uint64("seq", c.seq).Msg("Checking for updates")
	c.publish(events.EventUpdateChecking, nil)
}

// wait joins the fetch for seq, following any check that superseded it.
func (c *Controller) wait(ctx context.Context, seq uint64) (Snapshot, error) {
	// The fetch outlives any single waiter
	fetchCtx := context.WithoutCancel(ctx)

	for {
		results := c.flights.DoChan(strconv.FormatUint(seq, 10), func() (interface{}, error) {
			return nil, c.run(fetchCtx, seq)
		})

		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case res := <-results:
			c.mu.Lock()
			latest, checking := c.seq, c.state == StateChecking
			snap := c.snapshotLocked()
			c.mu.Unlock()

			if latest != seq {
				if checking {
					seq = latest
					continue
				}
				// Superseded and already settled
				return snap, nil
			}
			return snap, res.Err
		}
	}
}

// run performs the fetch for seq and applies its outcome.
func (c *Controller) run(ctx context.Context, seq uint64) error {
	c.mu.Lock()
	if c.seq != seq || c.state != StateChecking {
		// Settled before this waiter got here
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	release, err := c.source.FetchLatestRelease(ctx)
	if err == nil && ParseVersion(release.TagName) == "" {
		err = fmt.Errorf("release has no version tag")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		logger.Log.Debug().Uint64("seq", seq).Uint64("latest", c.seq).Msg("Dropping superseded update check")
		return nil
	}

	if err != nil {
		checkErr := &VersionCheckError{Cause: err}
		c.state = c.prior
		c.errMsg = checkErr.Error()
		logger.Log.Error().Err(err).Msg("Update check failed")
		c.publish(events.EventUpdateError, map[string]interface{}{"error": c.errMsg})
		return checkErr
	}

	c.errMsg = ""
	c.lastChecked = c.now().UTC().Format(time.RFC3339)
	if saveErr := c.save(constants.SettingLastChecked, c.lastChecked); saveErr != nil {
		logger.Log.Warn().Err(saveErr).Msg("Failed to persist last update check")
	}

	switch {
	case !IsNewer(release.TagName, c.current):
		c.state = StateUpToDate
		logger.Log.Info().Str("latest", release.TagName).Str("current", c.current).Msg("No update available")
		c.publish(events.EventUpdateUpToDate, map[string]interface{}{"latest": release.TagName})
	case c.dismissed != "" && !IsNewer(release.TagName, c.dismissed):
		c.state = StateDismissed
		logger.Log.Info().Str("latest", release.TagName).Str("dismissed", c.dismissed).Msg("Update previously dismissed")
		c.publish(events.EventUpdateDismissed, map[string]interface{}{"version": c.dismissed})
	default:
		c.state = StateAvailable
		c.info = newUpdateInfo(release)
		logger.Log.Info().Str("version", c.info.Version).Str("tag", c.info.Tag).Msg("Update available")
		c.publish(events.EventUpdateAvailable, map[string]interface{}{
			"version":     c.info.Version,
			"tag":         c.info.Tag,
			"downloadUrl": c.info.DownloadURL,
		})
	}
	return nil
}

// DownloadUpdate starts downloading the available update and returns to
// Idle. If the download cannot be started the update stays Available and the
// error is recorded.
func (c *Controller) DownloadUpdate() error {
	c.mu.Lock()
	if c.state != StateAvailable || c.info == nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: no update to download while %s", ErrInvalidTransition, state)
	}
	info := c.info
	c.state = StateDownloading
	c.publish(events.EventUpdateDownloading, map[string]interface{}{"url": info.DownloadURL})
	c.mu.Unlock()

	err := c.downloader.BeginDownload(info.DownloadURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateAvailable
		c.errMsg = fmt.Sprintf("failed to start download: %v", err)
		logger.Log.Error().Err(err).Str("url", info.DownloadURL).Msg("Failed to start update download")
		c.publish(events.EventUpdateError, map[string]interface{}{"error": c.errMsg})
		return fmt.Errorf("failed to start download: %w", err)
	}
	c.state = StateIdle
	c.info = nil
	c.errMsg = ""
	return nil
}

// DismissUpdate hides the available update. Releases up to and including
// the dismissed one are reported as Dismissed by later checks.
func (c *Controller) DismissUpdate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAvailable || c.info == nil {
		return fmt.Errorf("%w: no update to dismiss while %s", ErrInvalidTransition, c.state)
	}

	c.dismissed = c.info.Tag
	c.state = StateDismissed
	c.info = nil
	logger.Log.Info().Str("version", c.dismissed).Msg("Update dismissed")
	c.publish(events.EventUpdateDismissed, map[string]interface{}{"version": c.dismissed})

	if err := c.save(constants.SettingDismissedVersion, c.dismissed); err != nil {
		c.errMsg = err.Error()
		return err
	}
	return nil
}

// ClearError discards the recorded error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}
