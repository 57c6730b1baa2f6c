// Package objectstore uploads content-addressed objects to an S3-compatible bucket.
//
// Every upload is preceded by an existence check on the same key. Keys are derived from the payload,
// so an existing object is known to hold identical bytes and the upload is skipped.
// The check and the write are not atomic: two concurrent uploaders may both miss the object and both
// write it, which is harmless because they write the same bytes.
package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-assetpipe/contentaddr"
)

// Config holds the connection settings of the bucket.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicDomain    string
}

// Result describes a finished Store call.
type Result struct {
	URL string
	// Deduplicated is true when the object already existed and nothing was written.
	Deduplicated bool
}

// Uploader ...
type Uploader interface {
	// Upload stores payload under key unless it already exists and returns its public URL.
	Upload(ctx context.Context, payload []byte, key, contentType string) (string, error)
	// Store is Upload for a prepared request, also reporting whether the write was skipped.
	Store(ctx context.Context, req contentaddr.UploadRequest) (Result, error)
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket must not be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	return nil
}

// PublicURL joins the public domain and the key, dropping one trailing slash of the domain.
func PublicURL(publicDomain, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(publicDomain, "/"), key)
}
