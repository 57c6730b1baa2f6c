package network

import (
	"io"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient returns a retryable client that makes at most retryMax+1 attempts.
// Failed responses are handed back to the caller untouched so status and body stay inspectable.
func NewHTTPClient(logger log.Logger, retryMax int) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	if retryMax < 0 {
		retryMax = 0
	}
	client.RetryMax = retryMax
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// CloseBody drains and closes a response body, logging failures.
func CloseBody(body io.ReadCloser, logger log.Logger) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	if err := body.Close(); err != nil {
		logger.Warnf("Failed to close response body: %s", err)
	}
}

func transportOf(client *http.Client) http.RoundTripper {
	if client.Transport != nil {
		return client.Transport
	}
	return http.DefaultTransport
}
