package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned when a resolved path lies outside every
// configured root. It is terminal for the request; callers must not retry.
var ErrAccessDenied = errors.New("path outside allowed directories")

// Validator proves that a requested path is contained within one of the
// configured root directories. Every operation routes through Validate
// before any filesystem side effect; an unvalidated path must never reach a
// read or write syscall.
type Validator struct {
	roots []string
}

// NewValidator resolves and normalizes the configured roots. Each root must
// exist and be a directory; at least one root is required.
func NewValidator(dirs []string) (*Validator, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("at least one allowed directory is required")
	}
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path for %s: %w", dir, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("could not resolve allowed directory %s: %w", dir, err)
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("could not access allowed directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("allowed path is not a directory: %s", dir)
		}
		roots = append(roots, resolved)
	}
	return &Validator{roots: roots}, nil
}

// Roots returns the resolved root set.
func (v *Validator) Roots() []string {
	out := make([]string, len(v.roots))
	copy(out, v.roots)
	return out
}

// Validate resolves requested to an absolute, symlink-free path and checks
// it is contained within one of the roots. Relative input is resolved
// against the process working directory. Symlinks are resolved before the
// containment check, so a link inside a root cannot point outside it; for
// paths that do not exist yet, the deepest existing ancestor is resolved
// and the untraversed remainder re-joined.
func (v *Validator) Validate(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("%w: empty path", ErrAccessDenied)
	}
	abs, err := filepath.Abs(requested)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	resolved, err := resolveExisting(abs)
	if err != nil {
		// Dangling or cyclic symlinks are a validation failure, not a crash.
		return "", fmt.Errorf("%w: cannot resolve %s: %v", ErrAccessDenied, requested, err)
	}
	for _, root := range v.roots {
		if Contains(root, resolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAccessDenied, requested)
}

// Contains reports whether path lies under root, comparing on path-segment
// boundaries so that /allowed-dir does not admit /allowed-dir-evil. Both
// arguments must be absolute and symlink-free.
func Contains(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// abs and re-joins the non-existing remainder. abs must already be
// absolute and cleaned, so the remainder carries no "." or ".." segments.
func resolveExisting(abs string) (string, error) {
	p := abs
	var remainder []string
	for {
		if _, err := os.Lstat(p); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		remainder = append([]string{filepath.Base(p)}, remainder...)
		p = parent
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	if len(remainder) == 0 {
		return resolved, nil
	}
	return filepath.Join(append([]string{resolved}, remainder...)...), nil
}
