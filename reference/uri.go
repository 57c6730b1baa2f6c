package reference

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var titlePattern = regexp.MustCompile(`^(\S+)(?:\s+(["'].*["']))?$`)

// SplitTitle separates a trailing quoted title from a link target:
// `image.png "A title"` becomes ("image.png", `"A title"`). Targets that do not have that
// shape are returned unchanged.
func SplitTitle(raw string) (path, title string) {
	match := titlePattern.FindStringSubmatch(raw)
	if match == nil {
		return raw, ""
	}
	return match[1], match[2]
}

// reserved escapes stay encoded while decoding.
const reserved = ";/?:@&=+$,#"

// DecodeURI decodes percent-escaped UTF-8 sequences, leaving escapes of reserved characters
// untouched. Truncated escapes and invalid UTF-8 are errors.
func DecodeURI(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '%' {
			b.WriteByte(s[i])
			i++
			continue
		}

		first, ok := unhexAt(s, i)
		if !ok {
			return "", malformed(s)
		}

		if first < utf8.RuneSelf {
			if strings.IndexByte(reserved, first) >= 0 {
				b.WriteString(s[i : i+3])
			} else {
				b.WriteByte(first)
			}
			i += 3
			continue
		}

		n := sequenceLength(first)
		if n == 0 {
			return "", malformed(s)
		}
		seq := []byte{first}
		j := i + 3
		for k := 1; k < n; k++ {
			c, ok := unhexAt(s, j)
			if !ok || c&0xC0 != 0x80 {
				return "", malformed(s)
			}
			seq = append(seq, c)
			j += 3
		}
		if !utf8.Valid(seq) {
			return "", malformed(s)
		}
		b.Write(seq)
		i = j
	}

	return b.String(), nil
}

func malformed(s string) error {
	return fmt.Errorf("URI malformed: %s", s)
}

func unhexAt(s string, i int) (byte, bool) {
	if i+2 >= len(s) || s[i] != '%' {
		return 0, false
	}
	hi, ok1 := unhex(s[i+1])
	lo, ok2 := unhex(s[i+2])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func sequenceLength(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	}
	return 0
}
