package reference

import (
	"fmt"
	"sort"
)

// Replacement swaps the span [Start, End) of a text for Text.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Markdown renders an embed of url with empty alt text.
func Markdown(url string) string {
	return fmt.Sprintf("![](%s)", url)
}

// Rewrite applies replacements from the highest start offset down, so every span still refers to
// the original text when it is applied. Spans must not overlap.
func Rewrite(text string, replacements []Replacement) string {
	if len(replacements) == 0 {
		return text
	}

	ordered := append([]Replacement(nil), replacements...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	for _, r := range ordered {
		text = text[:r.Start] + r.Text + text[r.End:]
	}
	return text
}
