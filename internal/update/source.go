package update

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Release is a published release as reported by a VersionSource.
// Field tags follow the GitHub releases API.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a downloadable file attached to a release
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// UpdateInfo describes an available update
type UpdateInfo struct {
	Version      string    `json:"version"`
	Tag          string    `json:"tag"`
	Name         string    `json:"name"`
	ReleaseNotes string    `json:"releaseNotes"`
	DownloadURL  string    `json:"downloadUrl"`
	ReleaseURL   string    `json:"releaseUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// VersionSource fetches the newest published release.
type VersionSource interface {
	FetchLatestRelease(ctx context.Context) (Release, error)
}

// Downloader starts an update download, typically by opening a browser.
// It returns once the download has been started.
type Downloader interface {
	BeginDownload(url string) error
}

// Store persists controller settings between runs.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// VersionCheckError is recorded when a check cannot reach a verdict.
type VersionCheckError struct {
	Cause error
}

func (e *VersionCheckError) Error() string {
	return fmt.Sprintf("failed to check for updates: %v", e.Cause)
}

func (e *VersionCheckError) Unwrap() error {
	return e.Cause
}

// ErrNoRelease is returned by sources that have nothing published.
var ErrNoRelease = errors.New("no releases found")

// assetSuffix is the installer file name suffix for this platform.
// An empty suffix matches the first asset.
func assetSuffix(goos string) string {
	switch goos {
	case "linux":
		return ".AppImage"
	case "windows":
		return "-setup.exe"
	case "android":
		return "-debug.apk"
	default:
		return ""
	}
}

// downloadURL picks the platform asset, falling back to the release page.
func downloadURL(release Release, goos string) string {
	suffix := assetSuffix(goos)
	for _, asset := range release.Assets {
		if strings.HasSuffix(asset.Name, suffix) && asset.BrowserDownloadURL != "" {
			return asset.BrowserDownloadURL
		}
	}
	return release.HTMLURL
}

func newUpdateInfo(release Release) *UpdateInfo {
	return &UpdateInfo{
		Version:      ParseVersion(release.TagName),
		Tag:          release.TagName,
		Name:         release.Name,
		ReleaseNotes: release.Body,
		DownloadURL:  downloadURL(release, runtime.GOOS),
		ReleaseURL:   release.HTMLURL,
		PublishedAt:  release.PublishedAt,
	}
}

// ManifestSource reads release metadata from a JSON file, either a single
// release object or a list in GitHub's newest-first order.
type ManifestSource struct {
	Path string
}

// FetchLatestRelease implements VersionSource.
func (m ManifestSource) FetchLatestRelease(ctx context.Context) (Release, error) {
	if err := ctx.Err(); err != nil {
		return Release{}, err
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return Release{}, fmt.Errorf("failed to read release manifest: %w", err)
	}
	return decodeRelease(data)
}

func decodeRelease(data []byte) (Release, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var releases []Release
		if err := json.Unmarshal(data, &releases); err != nil {
			return Release{}, fmt.Errorf("failed to parse release manifest: %w", err)
		}
		if len(releases) == 0 {
			return Release{}, ErrNoRelease
		}
		return releases[0], nil
	}

	var release Release
	if err := json.Unmarshal(data, &release); err != nil {
		return Release{}, fmt.Errorf("failed to parse release manifest: %w", err)
	}
	return release, nil
}
