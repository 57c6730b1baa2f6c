package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bitrise-io/go-assetpipe/internal/osproxy"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTrashFolder ...
	DefaultTrashFolder = ".trash"
	// DefaultResolverCacheSize ...
	DefaultResolverCacheSize = 4096

	trashTimeFormat = "20060102T150405"
)

// DefaultExclude lists the folders never indexed.
var DefaultExclude = []string{".trash/**", ".obsidian/**", ".git/**"}

// Options ...
type Options struct {
	// Exclude holds doublestar patterns of files left out of the listing.
	Exclude []string
	// TrashFolder is vault-relative; it is always excluded.
	TrashFolder       string
	ResolverCacheSize int
}

// FS is a Store backed by a directory.
type FS struct {
	root        string
	os          osproxy.OsProxy
	exclude     []string
	trashFolder string
	logger      log.Logger
	now         func() time.Time

	mu       sync.Mutex
	index    []File
	byID     map[string]File
	indexed  bool
	resolved *lru.Cache[string, resolution]
}

type resolution struct {
	id    string
	found bool
}

// New opens the vault at root.
func New(root string, opts Options, logger log.Logger) (*FS, error) {
	return newFS(root, opts, osproxy.RealOS{}, logger)
}

func newFS(root string, opts Options, osProxy osproxy.OsProxy, logger log.Logger) (*FS, error) {
	abs, err := osProxy.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	info, err := osProxy.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}

	if opts.TrashFolder == "" {
		opts.TrashFolder = DefaultTrashFolder
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultExclude
	}
	if opts.ResolverCacheSize <= 0 {
		opts.ResolverCacheSize = DefaultResolverCacheSize
	}

	exclude := append([]string{strings.Trim(opts.TrashFolder, "/") + "/**"}, opts.Exclude...)
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}

	cache, err := lru.New[string, resolution](opts.ResolverCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}

	return &FS{
		root:        abs,
		os:          osProxy,
		exclude:     exclude,
		trashFolder: strings.Trim(opts.TrashFolder, "/"),
		logger:      logger,
		now:         time.Now,
		resolved:    cache,
	}, nil
}

// Root is the absolute vault directory.
func (v *FS) Root() string {
	return v.root
}

// ReadDocumentText ...
func (v *FS) ReadDocumentText(id string) (string, error) {
	b, err := v.ReadBinary(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBinary ...
func (v *FS) ReadBinary(id string) ([]byte, error) {
	p, err := v.abs(id)
	if err != nil {
		return nil, err
	}
	b, err := v.os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return b, nil
}

// WriteDocumentText replaces the file atomically, creating it and its folders if needed.
func (v *FS) WriteDocumentText(id, text string) error {
	p, err := v.abs(id)
	if err != nil {
		return err
	}

	_, statErr := v.os.Stat(p)
	created := os.IsNotExist(statErr)

	if err := v.os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create folder of %s: %w", id, err)
	}
	if err := v.writeAtomic(p, []byte(text)); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}

	if created {
		v.invalidate()
	}
	return nil
}

func (v *FS) writeAtomic(p string, content []byte) error {
	tmp, err := v.os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = v.os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = v.os.Remove(tmpName)
		return err
	}
	if err := v.os.Rename(tmpName, p); err != nil {
		_ = v.os.Remove(tmpName)
		return err
	}
	return nil
}

// ListAllFiles returns every file not matched by an exclude pattern, sorted by id.
func (v *FS) ListAllFiles() ([]File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureIndex(); err != nil {
		return nil, err
	}
	return append([]File(nil), v.index...), nil
}

// Match returns the listed files matching any of the doublestar patterns.
func (v *FS) Match(patterns ...string) ([]File, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern: %s", pattern)
		}
	}

	files, err := v.ListAllFiles()
	if err != nil {
		return nil, err
	}

	var matched []File
	for _, f := range files {
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, f.ID); ok {
				matched = append(matched, f)
				break
			}
		}
	}
	return matched, nil
}

// Reindex rebuilds the file listing and forgets every memoized link resolution.
func (v *FS) Reindex() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.indexed = false
	return v.ensureIndex()
}

func (v *FS) invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.indexed = false
	v.resolved.Purge()
}

func (v *FS) ensureIndex() error {
	if v.indexed {
		return nil
	}

	var files []File
	err := fs.WalkDir(v.os.DirFS(v.root), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || v.excluded(p) {
			return nil
		}
		files = append(files, NewFile(p))
		return nil
	})
	if err != nil {
		return fmt.Errorf("index vault: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	v.index = files
	v.byID = make(map[string]File, len(files))
	for _, f := range files {
		v.byID[f.ID] = f
	}
	v.indexed = true
	v.resolved.Purge()

	v.logger.Debugf("Indexed %d files in %s", len(files), v.root)
	return nil
}

func (v *FS) excluded(id string) bool {
	for _, pattern := range v.exclude {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}

// MoveToTrash moves the file under the trash folder, keeping its vault path. An existing file at
// the destination is never overwritten; the moved file gets a timestamp suffix instead.
func (v *FS) MoveToTrash(id string) error {
	src, err := v.abs(id)
	if err != nil {
		return err
	}

	target := path.Join(v.trashFolder, id)
	dst, err := v.abs(target)
	if err != nil {
		return err
	}
	if _, err := v.os.Stat(dst); err == nil {
		dst = v.freeTrashName(dst)
	}

	if err := v.os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create trash folder: %w", err)
	}
	if err := v.os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("trash %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("trash %s: %w", id, err)
	}

	v.invalidate()
	return nil
}

func (v *FS) freeTrashName(dst string) string {
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext) + "-" + v.now().UTC().Format(trashTimeFormat)

	candidate := base + ext
	for i := 1; ; i++ {
		if _, err := v.os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

func (v *FS) abs(id string) (string, error) {
	clean := path.Clean("/" + id)
	if clean == "/" {
		return "", fmt.Errorf("invalid file id: %q", id)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}
