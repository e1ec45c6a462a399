package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/anubis/internal/checksum"
	"github.com/starford/anubis/internal/models"
)

const tmpPrefix = ".anubis-tmp-"

// FS is a Provider over a directory on the local disk. It serves both the
// source tree and the export directory.
type FS struct {
	root   string // absolute
	ignore *Matcher
}

// NewFS opens the existing directory root. Files matching one of the ignore
// globs are left out of List.
func NewFS(root string, ignore []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	m, err := NewMatcher(ignore)
	if err != nil {
		return nil, err
	}
	return &FS{root: abs, ignore: m}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// resolve maps a slash-separated path relative to the root onto the file
// system. Paths that are absolute or climb out of the root are rejected.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: path outside source root: %s", rel)
	}
	return filepath.Join(f.root, local), nil
}

// Ignored reports whether rel matches one of the ignore patterns.
func (f *FS) Ignored(rel string) bool {
	return f.ignore.Match(rel)
}

// List walks dir (relative to root) and returns the path, checksum and
// modification time of every regular file not matched by the ignore
// patterns, in lexical order. A directory whose path with a trailing slash
// is ignored is not descended into.
func (f *FS) List(dir string) ([]models.SourceFile, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []models.SourceFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && f.Ignored(rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tmpPrefix) || f.Ignored(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.SourceFile{
			Path:      rel,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", dir, err)
	}
	return out, nil
}

// Read returns the raw bytes of a file under the root.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the file at path with content. The bytes go to a temporary
// file in the same directory which is synced and then renamed over path, so
// readers never observe a partial file.
func (f *FS) Write(path string, content []byte) (err error) {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: cannot write the source root")
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	// CreateTemp makes the file 0600.
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: rename %s: %w", path, err)
	}
	return nil
}
