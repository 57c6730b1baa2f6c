package vault

import (
	"path"
	"strings"
)

// ResolveLinkTarget maps a link hint written in the document from to a file id.
//
// In order: a leading "/" anchors the hint at the vault root; then the hint relative to the
// folder of from; then the hint as a vault path; then the shortest file path ending in "/hint",
// compared case-insensitively, ties broken lexicographically. Hints without an extension also
// try the same steps with ".md" appended. A "#heading" or "#^block" suffix is ignored.
func (v *FS) ResolveLinkTarget(hint, from string) (string, bool) {
	hint = stripSubpath(hint)
	if hint == "" {
		return "", false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureIndex(); err != nil {
		v.logger.Warnf("Failed to index vault: %s", err)
		return "", false
	}

	dir := path.Dir(from)
	if dir == "." {
		dir = ""
	}
	key := dir + "\x00" + hint
	if cached, ok := v.resolved.Get(key); ok {
		return cached.id, cached.found
	}

	id, found := v.resolve(hint, dir)
	if !found && path.Ext(hint) == "" {
		id, found = v.resolve(hint+".md", dir)
	}

	v.resolved.Add(key, resolution{id: id, found: found})
	return id, found
}

func (v *FS) resolve(hint, dir string) (string, bool) {
	if strings.HasPrefix(hint, "/") {
		return v.lookup(path.Clean(strings.TrimPrefix(hint, "/")))
	}

	if dir != "" {
		if id, ok := v.lookup(path.Join(dir, hint)); ok {
			return id, true
		}
	}
	if id, ok := v.lookup(path.Clean(hint)); ok {
		return id, true
	}
	return v.suffixMatch(hint)
}

func (v *FS) lookup(id string) (string, bool) {
	if _, ok := v.byID[id]; ok {
		return id, true
	}
	return "", false
}

func (v *FS) suffixMatch(hint string) (string, bool) {
	lowerHint := strings.ToLower(strings.TrimPrefix(path.Clean(hint), "./"))
	suffix := "/" + lowerHint

	best := ""
	for _, f := range v.index {
		lower := strings.ToLower(f.ID)
		if lower != lowerHint && !strings.HasSuffix(lower, suffix) {
			continue
		}
		if best == "" || len(f.ID) < len(best) || (len(f.ID) == len(best) && f.ID < best) {
			best = f.ID
		}
	}
	return best, best != ""
}

func stripSubpath(hint string) string {
	if i := strings.IndexByte(hint, '#'); i >= 0 {
		hint = hint[:i]
	}
	return strings.TrimSpace(hint)
}
