// Package vault exposes a directory of notes and attachments as the document store of the pipeline.
// File ids are vault-relative paths with forward slashes.
package vault

import (
	"errors"
	"path"
	"strings"
)

// ErrNotFound is wrapped by read errors of missing files.
var ErrNotFound = errors.New("file not found")

// File is one entry of the vault listing.
type File struct {
	ID string
	// Extension is lowercase without the leading dot.
	Extension string
}

// Store is the document and asset access the pipeline and the collector need.
type Store interface {
	ReadDocumentText(id string) (string, error)
	WriteDocumentText(id, text string) error
	ReadBinary(id string) ([]byte, error)
	ListAllFiles() ([]File, error)
	ResolveLinkTarget(hint, from string) (string, bool)
	MoveToTrash(id string) error
}

// NewFile ...
func NewFile(id string) File {
	return File{
		ID:        id,
		Extension: strings.ToLower(strings.TrimPrefix(path.Ext(id), ".")),
	}
}

// Name is the base name of the file.
func (f File) Name() string {
	return path.Base(f.ID)
}

// Dir is the containing folder, "" for the vault root.
func (f File) Dir() string {
	dir := path.Dir(f.ID)
	if dir == "." {
		return ""
	}
	return dir
}
