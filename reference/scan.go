package reference

import "strings"

// Scan returns every reference in text in ascending start order. Spans never overlap: at one
// position a wiki link is preferred over a bracket link, and scanning resumes after a match.
// References with an empty target are consumed but not returned.
func Scan(sourceDocument, text string) []Reference {
	var refs []Reference

	pos := 0
	for {
		idx := strings.Index(text[pos:], "![")
		if idx < 0 {
			return refs
		}
		start := pos + idx

		if ref, end, ok := scanWiki(sourceDocument, text, start); ok {
			if ref.RawPath != "" {
				refs = append(refs, ref)
			}
			pos = end
			continue
		}
		if ref, end, ok := scanBracket(sourceDocument, text, start); ok {
			if ref.RawPath != "" {
				refs = append(refs, ref)
			}
			pos = end
			continue
		}
		pos = start + 1
	}
}

// scanWiki matches ![[target]] at start: the shortest target up to the first ]] on the same line.
func scanWiki(source, text string, start int) (Reference, int, bool) {
	open := start + len("![[")
	if !strings.HasPrefix(text[start:], "![[") {
		return Reference{}, 0, false
	}

	for i := open; i < len(text); i++ {
		switch {
		case text[i] == '\n':
			return Reference{}, 0, false
		case strings.HasPrefix(text[i:], "]]"):
			end := i + len("]]")
			return newReference(source, WikiLink, "", text[open:i], start, end), end, true
		}
	}
	return Reference{}, 0, false
}

// scanBracket matches ![alt](target) at start. The alt text is the shortest run without a newline
// that ends in "](" followed by a parsable target.
func scanBracket(source, text string, start int) (Reference, int, bool) {
	altStart := start + len("![")
	for i := altStart; i < len(text); i++ {
		if text[i] == '\n' {
			return Reference{}, 0, false
		}
		if !strings.HasPrefix(text[i:], "](") {
			continue
		}

		targetStart := i + len("](")
		closing, ok := parseTarget(text, targetStart)
		if !ok {
			continue
		}
		end := closing + 1
		return newReference(source, BracketLink, text[altStart:i], text[targetStart:closing], start, end), end, true
	}
	return Reference{}, 0, false
}

// parseTarget consumes non-paren characters interleaved with groups "( ... )" that contain no
// parens themselves, and returns the index of the closing ")" of the link.
func parseTarget(text string, pos int) (int, bool) {
	depth := 0
	for ; pos < len(text); pos++ {
		switch text[pos] {
		case '(':
			if depth == 1 {
				return 0, false
			}
			depth = 1
		case ')':
			if depth == 0 {
				return pos, true
			}
			depth = 0
		}
	}
	return 0, false
}
