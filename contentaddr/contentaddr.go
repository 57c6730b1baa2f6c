// Package contentaddr derives storage keys from encoded asset bytes.
//
// The key space is defined by SHA-256, the truncation length and the extension. Changing any of
// them orphans every object uploaded before the change.
package contentaddr

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// DefaultLength is the number of hex characters of the digest kept in a key.
	DefaultLength = 12
	// DefaultExtension matches the transcoder's output format.
	DefaultExtension = ".webp"
)

// UploadRequest is a payload ready to be stored under its content-derived key.
type UploadRequest struct {
	Key         string
	Payload     []byte
	ContentType string
}

// Addresser maps payloads to keys.
type Addresser struct {
	Extension string
	Length    int
}

// Default ...
func Default() Addresser {
	return Addresser{
		Extension: DefaultExtension,
		Length:    DefaultLength,
	}
}

// Digest returns the hex-encoded SHA-256 of payload.
func Digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Key returns the storage key of payload.
func (a Addresser) Key(payload []byte) string {
	digest := Digest(payload)
	length := a.Length
	if length <= 0 || length > len(digest) {
		length = len(digest)
	}
	return digest[:length] + a.Extension
}

// Request wraps payload into an UploadRequest keyed by its content.
func (a Addresser) Request(payload []byte, contentType string) UploadRequest {
	return UploadRequest{
		Key:         a.Key(payload),
		Payload:     payload,
		ContentType: contentType,
	}
}
