package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// FileStats holds basic statistics about a file.
type FileStats struct {
	Size    int64
	IsDir   bool
	ModTime time.Time
	Mode    os.FileMode
}

// DirEntryInfo holds information about a directory entry. IsDir and
// IsSymlink come from the entry type without following links, so a symlink
// to a directory reports IsSymlink, not IsDir.
type DirEntryInfo struct {
	Name      string
	IsDir     bool
	IsSymlink bool
	Size      int64
}

// Adapter defines an interface for interacting with the file system. It is
// the seam the engine, walker, and patch engine go through, which keeps
// them testable against an in-memory fake.
type Adapter interface {
	ReadFileBytes(filePath string) ([]byte, error)
	WriteFileBytesAtomic(filePath string, content []byte, perm os.FileMode) error
	FileExists(filePath string) (bool, error)
	GetFileStats(filePath string) (*FileStats, error)
	EvalSymlinks(path string) (string, error)
	ListDir(path string) ([]DirEntryInfo, error)
	IsValidUTF8(content []byte) bool
	NormalizeNewlines(content []byte) []byte
}

// OSAdapter is the standard implementation of Adapter backed by the os package.
type OSAdapter struct{}

// NewOSAdapter creates a new OSAdapter.
func NewOSAdapter() *OSAdapter {
	return &OSAdapter{}
}

var _ Adapter = (*OSAdapter)(nil)

// ReadFileBytes reads the entire file into a byte slice.
func (fs *OSAdapter) ReadFileBytes(filePath string) ([]byte, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading file: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to read file: %s: %w", filePath, err)
	}
	return content, nil
}

// WriteFileBytesAtomic writes content to a file atomically: write to a
// temporary file in the same directory, then rename over the target.
func (fs *OSAdapter) WriteFileBytesAtomic(filePath string, content []byte, finalPerm os.FileMode) error {
	dir := filepath.Dir(filePath)

	tempFile, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	// Harmless after a successful rename; cleans up on every error path.
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFile.Name(), filePath, err)
	}
	if err := os.Chmod(filePath, finalPerm); err != nil {
		return fmt.Errorf("file written to %s, but failed to set permissions to %o: %w", filePath, finalPerm, err)
	}
	return nil
}

// FileExists checks if a file exists.
func (fs *OSAdapter) FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("error checking if file exists %s: %w", filePath, err)
}

// GetFileStats retrieves statistics for a given path.
func (fs *OSAdapter) GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found for stats: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied getting stats for: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to get file stats for %s: %w", filePath, err)
	}
	return &FileStats{
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
	}, nil
}

// EvalSymlinks evaluates symbolic links for the given path.
func (fs *OSAdapter) EvalSymlinks(path string) (string, error) {
	resolvedPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate symlinks for %s: %w", path, err)
	}
	return resolvedPath, nil
}

// ListDir lists the contents of a directory. os.ReadDir returns entries
// sorted by filename, so listings are deterministic across runs.
func (fs *OSAdapter) ListDir(path string) ([]DirEntryInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s: %w", path, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading directory: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	dirEntries := make([]DirEntryInfo, 0, len(entries))
	for _, entry := range entries {
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		dirEntries = append(dirEntries, DirEntryInfo{
			Name:      entry.Name(),
			IsDir:     entry.IsDir(),
			IsSymlink: entry.Type()&os.ModeSymlink != 0,
			Size:      size,
		})
	}
	return dirEntries, nil
}

// IsValidUTF8 checks if the byte slice is valid UTF-8.
func (fs *OSAdapter) IsValidUTF8(content []byte) bool {
	return utf8.Valid(content)
}

// NormalizeNewlines converts \r\n and bare \r to \n.
func (fs *OSAdapter) NormalizeNewlines(content []byte) []byte {
	if len(content) == 0 {
		return []byte{}
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
}

// NormalizeText is the string form of NormalizeNewlines.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
