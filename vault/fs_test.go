package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitrise-io/go-assetpipe/internal/osproxy"
	"github.com/bitrise-io/go-assetpipe/internal/testutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, files map[string]string) *FS {
	root := testutil.WriteVault(t, files)
	v, err := New(root, Options{}, log.NewLogger())
	require.NoError(t, err)
	return v
}

func ids(files []File) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.ID)
	}
	return out
}

func TestFS_ListAllFiles_SkipsExcluded(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"a.md":                    "a",
		"notes/b.md":              "b",
		"notes/attachments/c.PNG": "c",
		".trash/old.png":          "x",
		".obsidian/app.json":      "{}",
		".git/HEAD":               "ref",
	})

	files, err := v.ListAllFiles()

	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "notes/attachments/c.PNG", "notes/b.md"}, ids(files))
	assert.Equal(t, "png", files[1].Extension)
	assert.Equal(t, "c.PNG", files[1].Name())
	assert.Equal(t, "notes/attachments", files[1].Dir())
}

func TestFS_Match(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"a.md":         "a",
		"notes/b.md":   "b",
		"board.kanban": "k",
		"img/c.png":    "c",
	})

	files, err := v.Match("**/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "notes/b.md"}, ids(files))

	_, err = v.Match("[")
	assert.Error(t, err)
}

func TestFS_ReadWrite(t *testing.T) {
	v := newTestVault(t, map[string]string{"note.md": "before"})

	text, err := v.ReadDocumentText("note.md")
	require.NoError(t, err)
	assert.Equal(t, "before", text)

	require.NoError(t, v.WriteDocumentText("note.md", "after"))
	require.NoError(t, v.WriteDocumentText("new/report.md", "created"))

	require.NoError(t, testutil.NewVaultChecker(v.Root()).
		Content("note.md", "after").
		Content("new/report.md", "created").
		Check())

	files, err := v.ListAllFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"new/report.md", "note.md"}, ids(files))

	entries, err := os.ReadDir(v.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFS_ReadBinary_NotFound(t *testing.T) {
	v := newTestVault(t, map[string]string{})

	_, err := v.ReadBinary("missing.png")

	assert.True(t, errors.Is(err, ErrNotFound))
}

type failingRenameOS struct {
	osproxy.RealOS
}

func (failingRenameOS) Rename(string, string) error {
	return errors.New("disk full")
}

func TestFS_WriteDocumentText_FailureKeepsOriginal(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{"note.md": "original"})
	v, err := newFS(root, Options{}, failingRenameOS{}, log.NewLogger())
	require.NoError(t, err)

	err = v.WriteDocumentText("note.md", "changed")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, testutil.NewVaultChecker(root).Content("note.md", "original").Check())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFS_MoveToTrash(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"attachments/a.png":        "new",
		".trash/attachments/a.png": "older",
	})
	v.now = func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC) }

	require.NoError(t, v.MoveToTrash("attachments/a.png"))

	require.NoError(t, testutil.NewVaultChecker(v.Root()).
		Missing("attachments/a.png").
		Content(".trash/attachments/a.png", "older").
		Content(".trash/attachments/a-20240305T140709.png", "new").
		Check())

	files, err := v.ListAllFiles()
	require.NoError(t, err)
	assert.Empty(t, files)

	err = v.MoveToTrash("attachments/a.png")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFS_IDsStayInsideRoot(t *testing.T) {
	v := newTestVault(t, map[string]string{"a.md": "inside"})

	text, err := v.ReadDocumentText("../../a.md")

	require.NoError(t, err)
	assert.Equal(t, "inside", text)

	_, err = v.ReadDocumentText("")
	assert.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, log.NewLogger())
	assert.Error(t, err)

	_, err = New(t.TempDir(), Options{Exclude: []string{"["}}, log.NewLogger())
	assert.Error(t, err)
}
