// Package reference finds embedded image references in note text and rewrites them.
//
// Two forms are recognized: ![alt](target) and ![[target]]. A bracket target may contain
// balanced parentheses nested exactly one level deep, e.g. ![](image(1).png).
package reference

import (
	"fmt"
	"strings"
)

// Kind is the syntax a reference was written in.
type Kind int

const (
	// BracketLink is ![alt](target).
	BracketLink Kind = iota
	// WikiLink is ![[target]].
	WikiLink
)

func (k Kind) String() string {
	switch k {
	case BracketLink:
		return "bracket"
	case WikiLink:
		return "wiki"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reference is one embedded image occurrence. Start and End are byte offsets into the scanned
// text and are only valid for that exact text.
type Reference struct {
	SourceDocument string
	Kind           Kind
	Alt            string
	// RawPath is the target as written, including any title.
	RawPath string
	// Path is RawPath without its title (or a wiki link's "|" alias or size) and with
	// percent-escapes decoded.
	// When decoding fails it holds the undecoded path and DecodeErr is set.
	Path      string
	DecodeErr error
	Start     int
	End       int
	Remote    bool
}

// Resolver maps a link hint written in a document to a concrete file.
type Resolver interface {
	ResolveLinkTarget(hint, from string) (string, bool)
}

// ResolutionError means a local reference does not point at an existing file.
type ResolutionError struct {
	Path   string
	Source string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("Image not found locally: %s", e.Path)
}

// Resolve returns the file the reference points at.
func (r Reference) Resolve(resolver Resolver) (string, error) {
	if r.DecodeErr != nil {
		return "", r.DecodeErr
	}
	id, ok := resolver.ResolveLinkTarget(r.Path, r.SourceDocument)
	if !ok {
		return "", &ResolutionError{Path: r.Path, Source: r.SourceDocument}
	}
	return id, nil
}

// AlreadyMigrated reports whether the raw path already points at publicDomain.
// An empty domain never matches.
func (r Reference) AlreadyMigrated(publicDomain string) bool {
	return publicDomain != "" && strings.Contains(r.RawPath, publicDomain)
}

// IsRemote reports whether path has an http or https scheme.
func IsRemote(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func newReference(source string, kind Kind, alt, raw string, start, end int) Reference {
	ref := Reference{
		SourceDocument: source,
		Kind:           kind,
		Alt:            alt,
		RawPath:        raw,
		Start:          start,
		End:            end,
	}

	path, _ := SplitTitle(raw)
	if kind == WikiLink {
		path = stripAlias(path)
	}
	decoded, err := DecodeURI(path)
	if err != nil {
		ref.Path = path
		ref.DecodeErr = err
	} else {
		ref.Path = decoded
	}
	ref.Remote = IsRemote(ref.Path)

	return ref
}

// stripAlias drops the "|alias" or "|300" display suffix of a wiki target.
func stripAlias(target string) string {
	if i := strings.IndexByte(target, '|'); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target)
}
