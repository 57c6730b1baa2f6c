package pipeline

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-assetpipe/config"
	"github.com/bitrise-io/go-assetpipe/network"
	"github.com/bitrise-io/go-assetpipe/network/objectstore"
	"github.com/bitrise-io/go-assetpipe/transcode"
	"github.com/bitrise-io/go-assetpipe/vault"
	"github.com/bitrise-io/go-utils/v2/log"
)

// NewUploader returns the object store client selected by the configured backend.
func NewUploader(ctx context.Context, cfg config.Config, logger log.Logger) (objectstore.Uploader, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.BackendSDK:
		return objectstore.NewS3Client(ctx, cfg.ObjectStore(), logger)
	case config.BackendSigned, "":
		return objectstore.NewClient(cfg.ObjectStore(), logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// Build wires a Processor with the real fetcher, transcoder and object store client.
func Build(ctx context.Context, cfg config.Config, store vault.Store, logger log.Logger, opts ...Option) (*Processor, error) {
	uploader, err := NewUploader(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := network.NewFetcher(network.FetcherConfig{
		Retries:  cfg.FetchRetries,
		MaxBytes: cfg.MaxImageBytes,
	}, logger)

	return New(cfg, store, fetcher, transcode.New(logger), uploader, logger, opts...), nil
}
