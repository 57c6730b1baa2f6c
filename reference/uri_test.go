package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		raw       string
		wantPath  string
		wantTitle string
	}{
		{raw: "image.png", wantPath: "image.png"},
		{raw: `image.png "Title"`, wantPath: "image.png", wantTitle: `"Title"`},
		{raw: `image.png   'Long title here'`, wantPath: "image.png", wantTitle: `'Long title here'`},
		{raw: "my image.png", wantPath: "my image.png"},
		{raw: `image.png Title`, wantPath: "image.png Title"},
		{raw: "", wantPath: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			path, title := SplitTitle(tt.raw)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func TestDecodeURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain.png", want: "plain.png"},
		{in: "my%20image.png", want: "my image.png"},
		{in: "caf%C3%A9.png", want: "café.png"},
		{in: "%E4%B8%AD%E6%96%87.png", want: "中文.png"},
		{in: "a%2Fb.png", want: "a%2Fb.png"},
		{in: "a%23b%3Fc.png", want: "a%23b%3Fc.png"},
		{in: "%41%62", want: "Ab"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeURI(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeURI_Malformed(t *testing.T) {
	for _, in := range []string{"%", "%2", "%zz.png", "%C3.png", "%C3%28", "%FF"} {
		t.Run(in, func(t *testing.T) {
			_, err := DecodeURI(in)
			assert.Error(t, err)
		})
	}
}
