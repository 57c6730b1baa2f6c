package objectstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-assetpipe/contentaddr"
	"github.com/bitrise-io/go-assetpipe/internal/testutil"
	"github.com/bitrise-io/go-assetpipe/network"
	"github.com/bitrise-io/go-assetpipe/network/sigv4"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint, publicDomain string) *Client {
	client, err := NewClient(Config{
		Endpoint:        endpoint,
		Region:          "auto",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		Bucket:          "assets",
		PublicDomain:    publicDomain,
	}, log.NewLogger())
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC) }
	return client
}

func TestClient_Upload_Deduplicates(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()

	client := newTestClient(t, store.URL(), "https://assets.mydomain.com")
	payload := []byte("webp bytes")
	key := contentaddr.Default().Key(payload)

	first, err := client.Upload(context.Background(), payload, key, "image/webp")
	require.NoError(t, err)
	second, err := client.Upload(context.Background(), payload, key, "image/webp")
	require.NoError(t, err)

	assert.Equal(t, "https://assets.mydomain.com/"+key, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.Count(http.MethodHead))
	assert.Equal(t, 1, store.Count(http.MethodPut))

	stored, ok := store.Object("/assets/" + key)
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestClient_Store_ReportsDeduplication(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()
	store.Seed("/assets/abc.webp", []byte("old"))

	client := newTestClient(t, store.URL(), "https://cdn.example.com")
	result, err := client.Store(context.Background(), contentaddr.UploadRequest{Key: "abc.webp", Payload: []byte("old")})

	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, "https://cdn.example.com/abc.webp", result.URL)
	assert.Equal(t, 0, store.Count(http.MethodPut))
}

func TestClient_Upload_SignsRequests(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()

	client := newTestClient(t, store.URL(), "https://cdn.example.com")
	_, err := client.Upload(context.Background(), []byte("x"), "k.webp", "image/webp")
	require.NoError(t, err)

	requests := store.Requests()
	require.Len(t, requests, 2)
	for _, r := range requests {
		assert.Equal(t, "/assets/k.webp", r.Path)
		assert.Equal(t, sigv4.UnsignedPayload, r.ContentSHA256)
		assert.Equal(t, "20240305T140709Z", r.AmzDate)
		assert.True(t, strings.HasPrefix(r.Authorization, "AWS4-HMAC-SHA256 Credential=access/20240305/auto/s3/aws4_request"))
	}
	assert.Equal(t, http.MethodHead, requests[0].Method)
	assert.Equal(t, http.MethodPut, requests[1].Method)
	assert.Equal(t, "image/webp", requests[1].ContentType)
}

func TestClient_Upload_HeadFailureMeansAbsent(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()
	store.FailHeads()

	client := newTestClient(t, store.URL(), "https://cdn.example.com")
	url, err := client.Upload(context.Background(), []byte("x"), "k.webp", "")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/k.webp", url)
	assert.Equal(t, 1, store.Count(http.MethodHead))
	assert.Equal(t, 1, store.Count(http.MethodPut))
}

func TestClient_Upload_PutFailure(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()
	store.FailPuts(http.StatusForbidden, "AccessDenied")

	client := newTestClient(t, store.URL(), "https://cdn.example.com")
	_, err := client.Upload(context.Background(), []byte("x"), "k.webp", "image/webp")

	var uploadErr *network.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, http.StatusForbidden, uploadErr.Status)
	assert.Equal(t, "AccessDenied", uploadErr.Body)
	assert.Equal(t, "upload failed with status 403: AccessDenied", err.Error())
	assert.Equal(t, 1, store.Count(http.MethodPut))
}

func TestClient_Upload_Unreachable(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	endpoint := store.URL()
	store.Close()

	client := newTestClient(t, endpoint, "https://cdn.example.com")
	_, err := client.Upload(context.Background(), []byte("x"), "k.webp", "")

	var netErr *network.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.MethodPut, netErr.Method)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing endpoint", cfg: Config{Bucket: "b", Region: "auto"}, wantErr: "endpoint must not be empty"},
		{name: "missing bucket", cfg: Config{Endpoint: "http://localhost", Region: "auto"}, wantErr: "bucket must not be empty"},
		{name: "missing region", cfg: Config{Endpoint: "http://localhost", Bucket: "b"}, wantErr: "region must not be empty"},
		{name: "no host", cfg: Config{Endpoint: "localhost", Bucket: "b", Region: "auto"}, wantErr: "has no host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, log.NewLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{domain: "https://assets.mydomain.com", want: "https://assets.mydomain.com/k.webp"},
		{domain: "https://assets.mydomain.com/", want: "https://assets.mydomain.com/k.webp"},
		{domain: "https://assets.mydomain.com/img", want: "https://assets.mydomain.com/img/k.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicURL(tt.domain, "k.webp"))
		})
	}
}
