package network

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzhttp"
)

// Fetcher downloads remote image bytes into memory.
type Fetcher struct {
	client   *retryablehttp.Client
	maxBytes int64
	logger   log.Logger
}

// FetcherConfig ...
type FetcherConfig struct {
	// Retries is the number of extra attempts after a failed GET. Zero means a single attempt.
	Retries int
	// MaxBytes limits the accepted body size. Zero means unlimited.
	MaxBytes int64
}

// NewFetcher ...
func NewFetcher(cfg FetcherConfig, logger log.Logger) *Fetcher {
	client := NewHTTPClient(logger, cfg.Retries)
	client.HTTPClient.Transport = gzhttp.Transport(transportOf(client.HTTPClient))

	return &Fetcher{
		client:   client,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
	}
}

// Fetch returns the decoded response body of a GET to url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, URL: url, Err: err}
	}
	defer CloseBody(resp.Body, f.logger)

	if !IsSuccess(resp.StatusCode) {
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: ReadErrorBody(resp)}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("remote image %s exceeds the size limit of %s", url, units.HumanSize(float64(f.maxBytes)))
	}

	f.logger.Debugf("Fetched %s (%s)", url, units.HumanSize(float64(len(data))))
	return data, nil
}
