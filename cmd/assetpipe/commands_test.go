package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/bitrise-io/go-assetpipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeEnvFile(t *testing.T, endpoint string, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	content := "ASSETPIPE_STORE_ENDPOINT=" + endpoint + "\n" +
		"ASSETPIPE_STORE_ACCESS_KEY_ID=AKIDEXAMPLE\n" +
		"ASSETPIPE_STORE_SECRET_ACCESS_KEY=secret\n" +
		"ASSETPIPE_STORE_BUCKET=bucket\n" +
		"ASSETPIPE_STORE_PUBLIC_DOMAIN=https://assets.example.com/\n"
	for _, line := range extra {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func pngImage(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

func TestProcess_UploadsAndRewrites(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()

	root := testutil.WriteVault(t, map[string]string{
		"notes/a.md":             "# A\n\n![pic](../attachments/pic.png)\n",
		"notes/b.md":             "![[pic.png]] and ![[pic.png]]\n",
		"notes/plain.md":         "no images\n",
		"attachments/pic.png":    pngImage(t),
		".obsidian/workspace.md": "![[pic.png]]",
	})
	metricsFile := filepath.Join(t.TempDir(), "assetpipe.prom")

	envFile := writeEnvFile(t, store.URL(), "ASSETPIPE_CONCURRENCY=1")

	err := run(t, "process", "--vault", root, "--env-file", envFile, "--metrics-file", metricsFile)
	require.NoError(t, err)

	link := regexp.MustCompile(`!\[\]\(https://assets\.example\.com/[0-9a-f]{12}\.webp\)`)
	assert.Regexp(t, `^# A\n\n`+link.String()+`\n$`, testutil.ReadVaultFile(t, root, "notes/a.md"))
	assert.Len(t, link.FindAllString(testutil.ReadVaultFile(t, root, "notes/b.md"), -1), 2)
	assert.Equal(t, "no images\n", testutil.ReadVaultFile(t, root, "notes/plain.md"))
	assert.Equal(t, "![[pic.png]]", testutil.ReadVaultFile(t, root, ".obsidian/workspace.md"))
	assert.Equal(t, 1, store.Count("PUT"))

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `assetpipe_images_total{outcome="uploaded"} 1`)
	assert.Contains(t, string(metrics), `assetpipe_images_total{outcome="deduplicated"} 2`)
}

func TestProcess_DryRunLeavesEverythingInPlace(t *testing.T) {
	store := testutil.NewFakeObjectStore()
	defer store.Close()

	root := testutil.WriteVault(t, map[string]string{
		"a.md":                "![](attachments/pic.png)",
		"attachments/pic.png": pngImage(t),
	})

	err := run(t, "process", "--vault", root, "--env-file", writeEnvFile(t, store.URL()), "--dry-run")
	require.NoError(t, err)

	assert.Equal(t, "![](attachments/pic.png)", testutil.ReadVaultFile(t, root, "a.md"))
	assert.Empty(t, store.Requests())
}

func TestProcess_MissingStoreConfiguration(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{"a.md": "text"})

	err := run(t, "process", "--vault", root)

	require.Error(t, err)
}

func TestProcessFile_ErrorsAreLoggedNotReported(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{
		"notes/a.md": "![](missing.png)",
	})

	err := run(t, "process-file", filepath.Join(root, "notes", "a.md"), "--vault", root, "--env-file", writeEnvFile(t, "http://127.0.0.1:1"))

	require.NoError(t, err)
	require.NoError(t, testutil.NewVaultChecker(root).
		Content("notes/a.md", "![](missing.png)").
		Missing("processing_errors.md").
		Check())
}

func TestProcessFile_OutsideVault(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{"a.md": ""})
	outside := filepath.Join(t.TempDir(), "b.md")

	err := run(t, "process-file", outside, "--vault", root, "--env-file", writeEnvFile(t, "http://127.0.0.1:1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "is outside the vault")
}

func TestProcessFile_RequiresPath(t *testing.T) {
	require.Error(t, run(t, "process-file"))
}

func TestSweep(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{
		"a.md":                   "![[used.png]]",
		"attachments/used.png":   "u",
		"attachments/unused.png": "x",
	})

	require.NoError(t, run(t, "sweep", "--vault", root, "--dry-run"))
	require.NoError(t, testutil.NewVaultChecker(root).Exists("attachments/unused.png").Check())

	require.NoError(t, run(t, "sweep", "--vault", root))
	require.NoError(t, testutil.NewVaultChecker(root).
		Exists("attachments/used.png").
		Missing("attachments/unused.png").
		Content(".trash/attachments/unused.png", "x").
		Check())
}

func TestConfig(t *testing.T) {
	require.NoError(t, run(t, "config", "--env-file", writeEnvFile(t, "http://127.0.0.1:1")))
}

func TestConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yml")
	require.NoError(t, os.WriteFile(path, []byte("quality: 3\n"), 0o600))

	require.Error(t, run(t, "config", "--config", path))
}
