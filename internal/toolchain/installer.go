package toolchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultInstallerURL is the official PlatformIO Core installer script.
const DefaultInstallerURL = "https://raw.githubusercontent.com/platformio/platformio-core-installer/master/get-platformio.py"

// Downloader fetches the installer script.
type Downloader struct {
	url        string
	httpClient *http.Client
}

// NewDownloader creates a downloader for url.
func NewDownloader(url string) *Downloader {
	return &Downloader{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch writes the installer script to a temporary file and returns its path.
// The caller removes the file.
func (d *Downloader) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download installer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download installer (status %d): %s", resp.StatusCode, string(body))
	}

	f, err := os.CreateTemp("", "get-platformio-*.py")
	if err != nil {
		return "", fmt.Errorf("create installer file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write installer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close installer: %w", err)
	}
	return f.Name(), nil
}
