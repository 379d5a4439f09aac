// Package blob fetches article bodies from the asset host.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBodySize caps a downloaded body at 4 MiB; the extractor only keeps the
// first few thousand characters anyway.
const maxBodySize = 4 << 20

// Downloader fetches blobs over HTTP. Relative locators are resolved
// against BaseURL. It satisfies extract.Downloader.
type Downloader struct {
	BaseURL string

	HTTPClient *http.Client
}

// Download resolves a locator and returns the raw bytes.
func (d *Downloader) Download(ctx context.Context, locator string) ([]byte, error) {
	url := locator
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = strings.TrimSuffix(d.BaseURL, "/") + "/" + strings.TrimPrefix(locator, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob: http %d for %s", resp.StatusCode, locator)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func (d *Downloader) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 20 * time.Second}
}
