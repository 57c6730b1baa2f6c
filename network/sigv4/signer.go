// Package sigv4 computes AWS Signature Version 4 headers for S3-compatible object stores.
// Only header-based signing of unsigned payloads is supported.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// UnsignedPayload is sent as the payload hash; request bodies are never hashed.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// ServiceS3 is the signing name of S3-compatible stores.
	ServiceS3 = "s3"

	algorithm     = "AWS4-HMAC-SHA256"
	terminator    = "aws4_request"
	signedHeaders = "host;x-amz-content-sha256;x-amz-date"

	amzDateFormat = "20060102T150405Z"

	// HeaderDate ...
	HeaderDate = "X-Amz-Date"
	// HeaderContentSHA256 ...
	HeaderContentSHA256 = "X-Amz-Content-Sha256"
	// HeaderAuthorization ...
	HeaderAuthorization = "Authorization"
)

// Credentials identify the signing key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Signer produces the per-request authentication headers.
// A Signer holds no mutable state and is safe for concurrent use.
type Signer struct {
	Credentials Credentials
	Region      string
	Service     string
}

// Request is the part of an HTTP request that takes part in the signature.
type Request struct {
	Method string
	Host   string
	// Path is the unescaped resource path, e.g. /bucket/key.
	Path string
	// PayloadHash defaults to UnsignedPayload.
	PayloadHash string
	Time        time.Time
}

// Headers are the values a signed request has to carry.
type Headers struct {
	Authorization string
	Date          string
	ContentSHA256 string
}

// New ...
func New(credentials Credentials, region, service string) Signer {
	return Signer{
		Credentials: credentials,
		Region:      region,
		Service:     service,
	}
}

// Sign computes the Authorization, x-amz-date and x-amz-content-sha256 header values.
func (s Signer) Sign(r Request) Headers {
	payloadHash := r.PayloadHash
	if payloadHash == "" {
		payloadHash = UnsignedPayload
	}

	amzDate := r.Time.UTC().Format(amzDateFormat)
	dateStamp := amzDate[:8]
	scope := s.credentialScope(dateStamp)

	canonical := canonicalRequest(r.Method, canonicalURI(r.Path), r.Host, payloadHash, amzDate)
	toSign := stringToSign(amzDate, scope, canonical)

	key := signingKey(s.Credentials.SecretAccessKey, dateStamp, s.Region, s.Service)
	signature := hex.EncodeToString(hmacSHA256(key, toSign))

	return Headers{
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			algorithm, s.Credentials.AccessKeyID, scope, signedHeaders, signature),
		Date:          amzDate,
		ContentSHA256: payloadHash,
	}
}

// Apply sets the signed headers on h.
func (h Headers) Apply(header http.Header) {
	header.Set(HeaderAuthorization, h.Authorization)
	header.Set(HeaderDate, h.Date)
	header.Set(HeaderContentSHA256, h.ContentSHA256)
}

func (s Signer) credentialScope(dateStamp string) string {
	return strings.Join([]string{dateStamp, s.Region, s.Service, terminator}, "/")
}

func canonicalRequest(method, uri, host, payloadHash, amzDate string) string {
	canonicalHeaders := "host:" + host + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + amzDate + "\n"

	return strings.Join([]string{
		method,
		uri,
		"", // query string
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
}

func stringToSign(amzDate, scope, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hex.EncodeToString(sum[:]),
	}, "\n")
}

func signingKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, terminator)
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// canonicalURI escapes every path segment with the SigV4 unreserved set.
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = escapeSegment(segment)
	}
	uri := strings.Join(segments, "/")
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}

func escapeSegment(segment string) string {
	var b strings.Builder
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
