package pipeline

import (
	"context"
	"errors"

	"github.com/bitrise-io/go-assetpipe/network"
	"github.com/bitrise-io/go-assetpipe/reference"
	"github.com/bitrise-io/go-assetpipe/transcode"
	"github.com/bitrise-io/go-assetpipe/vault"
)

// FailureReason classifies err for metrics.
func FailureReason(err error) string {
	var (
		resolutionErr *reference.ResolutionError
		decodeErr     *transcode.DecodeError
		envErr        *transcode.UnsupportedEnvironmentError
		uploadErr     *network.UploadError
		statusErr     *network.StatusError
		networkErr    *network.NetworkError
	)

	switch {
	case errors.As(err, &resolutionErr):
		return "resolution"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &envErr):
		return "environment"
	case errors.As(err, &uploadErr):
		return "upload"
	case errors.As(err, &statusErr):
		return "fetch"
	case errors.As(err, &networkErr):
		return "network"
	case errors.Is(err, vault.ErrNotFound):
		return "read"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
