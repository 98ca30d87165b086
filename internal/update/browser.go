package update

import (
	"fmt"

	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/pkg/browser"
)

// BrowserDownloader hands the download URL to the system browser.
type BrowserDownloader struct {
	// open defaults to browser.OpenURL
	open func(url string) error
}

// NewBrowserDownloader creates a Downloader backed by the system browser
func NewBrowserDownloader() *BrowserDownloader {
	return &BrowserDownloader{open: browser.OpenURL}
}

// BeginDownload implements Downloader.
func (d *BrowserDownloader) BeginDownload(url string) error {
	if url == "" {
		return fmt.Errorf("no download URL")
	}
	logger.Log.Info().Str("url", url).Msg("Opening update download")
	if err := d.open(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
