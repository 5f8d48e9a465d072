// Package workspace owns the ephemeral storage root that request-scoped
// source trees are created under, and the guard that removes them.
//
// A Dir can only be obtained from Root.NewDir. Removal goes through the Dir
// handle, which records the root and a single path element; no raw path
// string supplied by a request ever reaches os.RemoveAll.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsafePath indicates a removal target that is not a direct child of the root
var ErrUnsafePath = errors.New("path is outside the workspace root")

// Root is the process-wide temporary storage root
type Root struct {
	path string
}

// NewRoot creates the root directory if needed and returns a handle to it.
func NewRoot(path string) (*Root, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "bomgate")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	// Resolve symlinks once so containment checks compare like with like
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Root{path: abs}, nil
}

// Path returns the absolute root path
func (r *Root) Path() string {
	return r.path
}

// NewDir creates a uniquely named child directory. The prefix is sanitized to
// a single path element; an empty prefix becomes "src".
func (r *Root) NewDir(prefix string) (*Dir, error) {
	name := SanitizePrefix(prefix) + "-" + uuid.NewString()
	full := filepath.Join(r.path, name)
	// Mkdir fails on collision instead of reusing another request's directory
	if err := os.Mkdir(full, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	return &Dir{root: r.path, name: name}, nil
}

// Prune removes entries directly under the root that were last modified
// more than maxAge ago. It reclaims directories left behind by a process that
// was killed before its guards ran. It returns how many entries were removed.
func (r *Root) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		return 0, fmt.Errorf("read workspace root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		dir := &Dir{root: r.path, name: entry.Name()}
		if err := dir.Remove(); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Dir is a directory created by Root.NewDir
type Dir struct {
	root string
	name string
}

// Path returns the absolute directory path
func (d *Dir) Path() string {
	return filepath.Join(d.root, d.name)
}

// Name returns the directory's single path element under the root
func (d *Dir) Name() string {
	return d.name
}

// Remove deletes the directory tree. A directory that no longer exists is not
// an error.
func (d *Dir) Remove() error {
	if !isSingleElement(d.name) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, d.name)
	}
	full := filepath.Join(d.root, d.name)
	if filepath.Dir(full) != filepath.Clean(d.root) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, full)
	}
	if err := os.RemoveAll(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func isSingleElement(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
