package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// VaultChecker chains assertions on files of a vault directory.
type VaultChecker struct {
	Root   string
	Checks []func(root string) error
}

// NewVaultChecker ...
func NewVaultChecker(root string) *VaultChecker {
	return &VaultChecker{Root: root}
}

// Check runs every check and returns all failures.
func (vc *VaultChecker) Check() error {
	errs := MultiError{}
	for _, check := range vc.Checks {
		AppendErr(&errs, check(vc.Root))
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Exists adds a check that the vault-relative path is a regular file.
func (vc *VaultChecker) Exists(rel string) *VaultChecker {
	vc.Checks = append(vc.Checks, func(root string) error {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("expected %s to exist: %w", rel, err)
		}
		if info.IsDir() {
			return fmt.Errorf("expected file but is a directory: %s", rel)
		}
		return nil
	})
	return vc
}

// Missing adds a check that the vault-relative path does not exist.
func (vc *VaultChecker) Missing(rel string) *VaultChecker {
	vc.Checks = append(vc.Checks, func(root string) error {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if err == nil {
			return fmt.Errorf("expected %s to be gone", rel)
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		return nil
	})
	return vc
}

// Content adds a check that the vault-relative file has exactly want as content.
func (vc *VaultChecker) Content(rel, want string) *VaultChecker {
	vc.Checks = append(vc.Checks, func(root string) error {
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		if got := string(b); got != want {
			return fmt.Errorf("file %s content mismatch\nwant:\n%q\n\ngot:\n%q", rel, want, got)
		}
		return nil
	})
	return vc
}

// WriteVault creates every file of files (vault-relative slash path to content) under a new temp dir.
func WriteVault(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// ReadVaultFile returns the content of a vault-relative file.
func ReadVaultFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/"))))
	require.NoError(t, err)
	return string(b)
}
