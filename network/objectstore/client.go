package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitrise-io/go-assetpipe/contentaddr"
	"github.com/bitrise-io/go-assetpipe/network"
	"github.com/bitrise-io/go-assetpipe/network/sigv4"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"
)

// Client talks to the store over plain HTTP, signing every request itself.
type Client struct {
	httpClient   *retryablehttp.Client
	signer       sigv4.Signer
	endpoint     *url.URL
	bucket       string
	publicDomain string
	now          func() time.Time
	logger       log.Logger
}

// NewClient ...
func NewClient(cfg Config, logger log.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", cfg.Endpoint)
	}

	return &Client{
		httpClient: network.NewHTTPClient(logger, 0),
		signer: sigv4.New(sigv4.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		}, cfg.Region, sigv4.ServiceS3),
		endpoint:     endpoint,
		bucket:       cfg.Bucket,
		publicDomain: cfg.PublicDomain,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// Upload ...
func (c *Client) Upload(ctx context.Context, payload []byte, key, contentType string) (string, error) {
	result, err := c.Store(ctx, contentaddr.UploadRequest{Key: key, Payload: payload, ContentType: contentType})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// Store ...
func (c *Client) Store(ctx context.Context, req contentaddr.UploadRequest) (Result, error) {
	if c.Exists(ctx, req.Key) {
		c.logger.Debugf("Object %s already exists, skipping upload", req.Key)
		return Result{URL: c.PublicURL(req.Key), Deduplicated: true}, nil
	}

	c.logger.Debugf("Uploading %s (%s)", req.Key, units.HumanSize(float64(len(req.Payload))))
	if err := c.put(ctx, req); err != nil {
		return Result{}, err
	}
	return Result{URL: c.PublicURL(req.Key)}, nil
}

// Exists reports whether HEAD on key answers 200. Every other outcome, including transport
// failures, counts as absent so that a broken check never blocks the upload.
func (c *Client) Exists(ctx context.Context, key string) bool {
	req, err := c.newRequest(ctx, http.MethodHead, key, nil, "")
	if err != nil {
		c.logger.Warnf("Check exists failed for %s: %s", key, err)
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warnf("Check exists failed for %s: %s", key, err)
		return false
	}
	defer network.CloseBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		c.logger.Debugf("HEAD %s: HTTP %d, treating as absent", key, resp.StatusCode)
	}
	return resp.StatusCode == http.StatusOK
}

// PublicURL ...
func (c *Client) PublicURL(key string) string {
	return PublicURL(c.publicDomain, key)
}

func (c *Client) put(ctx context.Context, upload contentaddr.UploadRequest) error {
	req, err := c.newRequest(ctx, http.MethodPut, upload.Key, upload.Payload, upload.ContentType)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = int64(len(upload.Payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &network.NetworkError{Method: http.MethodPut, URL: req.URL.String(), Err: err}
	}
	defer network.CloseBody(resp.Body, c.logger)

	if !network.IsSuccess(resp.StatusCode) {
		return &network.UploadError{Status: resp.StatusCode, Body: network.ReadErrorBody(resp)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, key string, body []byte, contentType string) (*retryablehttp.Request, error) {
	objectPath := c.endpoint.Path + "/" + c.bucket + "/" + key
	objectURL := *c.endpoint
	objectURL.Path = objectPath

	var rawBody interface{}
	if body != nil {
		rawBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, objectURL.String(), rawBody)
	if err != nil {
		return nil, err
	}

	c.signer.Sign(sigv4.Request{
		Method:      method,
		Host:        c.endpoint.Host,
		Path:        objectPath,
		PayloadHash: sigv4.UnsignedPayload,
		Time:        c.now(),
	}).Apply(req.Header)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
