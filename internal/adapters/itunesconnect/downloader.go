package itunesconnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

const (
	defaultDownloadTimeout = 120 * time.Second
	maxArtifactBytes       = 2 << 30
)

// Downloader fetches dSYM archives from the pre-signed URLs returned by build
// details. It carries no session.
type Downloader struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxBytes caps the archive size. Zero means 2 GiB.
	MaxBytes int64
}

var _ ports.ArtifactDownloader = (*Downloader)(nil)

func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	const op = "download artifact"

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	limit := d.MaxBytes
	if limit <= 0 {
		limit = maxArtifactBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: archive exceeds %d bytes", op, limit)
	}

	return data, nil
}

func (d *Downloader) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}
