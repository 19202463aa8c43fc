// Package storage confines filesystem access to a single archive root.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
)

// Root is a read-only view of the archive directory.
type Root struct {
	dir string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// NewRoot validates that dir exists and is a readable directory.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, faults.Config("archive directory is not set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, faults.WrapConfig(err, "failed to resolve archive directory")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, faults.WrapConfig(err, fmt.Sprintf("archive directory %s is not accessible", abs))
	}
	if !info.IsDir() {
		return nil, faults.Config("archive directory %s is not a directory", abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, faults.WrapConfig(err, fmt.Sprintf("archive directory %s is not readable", abs))
	}
	f.Close()

	return &Root{dir: abs}, nil
}

// Dir is the absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps a caller-supplied filename onto an absolute path inside the
// root. Absolute names, ".." segments and symlinks that land outside the root
// are rejected with an InvalidPath error. The file need not exist.
func (r *Root) Resolve(filename string) (string, error) {
	if filename == "" || strings.ContainsRune(filename, 0) {
		return "", faults.InvalidPath(filename, r.dir)
	}
	if filepath.IsAbs(filename) || filepath.VolumeName(filename) != "" {
		return "", faults.InvalidPath(filename, r.dir)
	}

	joined := filepath.Join(r.dir, filepath.FromSlash(filename))
	if !r.contains(joined) {
		return "", faults.InvalidPath(filename, r.dir)
	}

	// Follow symlinks only when the target exists; a missing file is not a path error.
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		if !r.contains(resolved) {
			return "", faults.InvalidPath(filename, r.dir)
		}
	}
	return joined, nil
}

func (r *Root) contains(path string) bool {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Rel returns the slash-separated name of an absolute path under the root.
func (r *Root) Rel(path string) (string, error) {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// HasFile reports whether path exists and is a regular file.
func (r *Root) HasFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// GetFileStats returns metadata about a file using os.Stat.
func (r *Root) GetFileStats(path string) (*FileStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}
	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

// Walk visits every regular file under the root whose extension matches ext
// (case-insensitive), in lexical order. Unreadable subtrees are reported to
// onErr and skipped.
func (r *Root) Walk(ext string, visit func(path string, info fs.FileInfo), onErr func(path string, err error)) error {
	ext = strings.ToLower(ext)
	return filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if onErr != nil {
				onErr(path, err)
			}
			if d != nil && d.IsDir() && path != r.dir {
				return fs.SkipDir
			}
			if path == r.dir {
				return err
			}
			return nil
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if onErr != nil {
				onErr(path, err)
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		visit(path, info)
		return nil
	})
}
