package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Downloader fetches remote media files into the temp directory.
type Downloader struct {
	client  *http.Client
	tempDir string
}

// NewDownloader builds a downloader writing under tempDir.
func NewDownloader(client *http.Client, tempDir string) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, tempDir: tempDir}
}

// Fetch downloads url to a file named fileName under the temp directory
// and returns the local path. The caller owns cleanup.
func (d *Downloader) Fetch(ctx context.Context, url, fileName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	path := filepath.Join(d.tempDir, filepath.Base(fileName))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
