// Package walker enumerates text files under a sandbox root, applying
// layered gitignore patterns and a binary-extension filter, and produces a
// per-file line and token accounting.
package walker

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"codebase-context-server/internal/filesystem"
	"codebase-context-server/internal/ignore"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/sandbox"
	"codebase-context-server/internal/tokenizer"
)

// Walker performs the recursive directory analysis.
type Walker struct {
	fs      filesystem.Adapter
	counter tokenizer.Counter
}

// New creates a Walker counting tokens with the given counter.
func New(fs filesystem.Adapter, counter tokenizer.Counter) *Walker {
	return &Walker{fs: fs, counter: counter}
}

// frame is one pending directory on the explicit work stack. Carrying the
// inherited patterns in the frame keeps pattern scoping per traversal
// branch and bounds stack depth on deeply nested trees.
type frame struct {
	dir      string
	rel      string
	patterns []string
}

// Walk enumerates files under root depth-first, in directory-entry
// enumeration order. Entering a directory appends its own .gitignore
// patterns to the inherited ones, so the most specific pattern sits at the
// end of the sequence and wins conflicting matches. Symlink entries are
// resolved and must land inside the walk root before they are read; links
// escaping the root are skipped. A failure on one file is logged and
// skipped; it never aborts the walk of sibling or ancestor directories.
func (w *Walker) Walk(root string) ([]models.FileRecord, error) {
	// Resolve the root itself so containment checks on symlink targets
	// compare symlink-free absolute paths.
	root, err := w.fs.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	records := []models.FileRecord{}
	stack := []frame{{dir: root, rel: ""}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		patterns := make([]string, 0, len(f.patterns))
		patterns = append(patterns, f.patterns...)
		patterns = append(patterns, ignore.LoadPatterns(f.dir)...)
		matcher := ignore.Compile(patterns)

		entries, err := w.fs.ListDir(f.dir)
		if err != nil {
			if f.rel == "" {
				return nil, fmt.Errorf("walking %s: %w", root, err)
			}
			logrus.WithError(err).Warnf("skipping unreadable directory %s", f.dir)
			continue
		}

		var subdirs []frame
		for _, entry := range entries {
			// Hidden entries (including .git and the .gitignore files the
			// resolver reads separately) are not part of the analysis.
			if strings.HasPrefix(entry.Name, ".") {
				continue
			}
			rel := path.Join(f.rel, entry.Name)
			if matcher.Matches(rel, entry.IsDir) {
				continue
			}
			if entry.IsDir {
				subdirs = append(subdirs, frame{
					dir:      filepath.Join(f.dir, entry.Name),
					rel:      rel,
					patterns: patterns,
				})
				continue
			}
			if IsBinaryPath(entry.Name) {
				continue
			}
			full := filepath.Join(f.dir, entry.Name)
			if entry.IsSymlink {
				target, ok := w.resolveLink(root, full, rel)
				if !ok {
					continue
				}
				full = target
			}
			record, err := w.analyzeFile(full, rel)
			if err != nil {
				logrus.WithError(err).Warnf("skipping file %s", rel)
				continue
			}
			records = append(records, *record)
		}

		// Push in reverse so the stack pops subdirectories in enumeration
		// order, preserving depth-first traversal.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return records, nil
}

// resolveLink resolves a symlink entry and enforces containment under the
// walk root before anything is read through it. Unresolvable links, links
// whose target lies outside the root, and links to directories are skipped;
// a symlinked directory's real tree is walked at its own path, and
// following links into it could introduce cycles.
func (w *Walker) resolveLink(root, full, rel string) (string, bool) {
	resolved, err := w.fs.EvalSymlinks(full)
	if err != nil {
		logrus.WithError(err).Warnf("skipping unresolvable symlink %s", rel)
		return "", false
	}
	if !sandbox.Contains(root, resolved) {
		logrus.Warnf("skipping symlink %s: target outside the analyzed root", rel)
		return "", false
	}
	stats, err := w.fs.GetFileStats(resolved)
	if err != nil {
		logrus.WithError(err).Warnf("skipping symlink %s", rel)
		return "", false
	}
	if stats.IsDir {
		return "", false
	}
	return resolved, true
}

func (w *Walker) analyzeFile(fullPath, rel string) (*models.FileRecord, error) {
	content, err := w.fs.ReadFileBytes(fullPath)
	if err != nil {
		return nil, err
	}
	if !w.fs.IsValidUTF8(content) {
		return nil, fmt.Errorf("content of %s is not valid UTF-8", rel)
	}
	text := string(content)
	tokenCount, err := w.counter.Count(text)
	if err != nil {
		return nil, err
	}
	return &models.FileRecord{
		Path: rel,
		// The trailing empty segment after a final newline counts as a line.
		LineCount:  len(strings.Split(text, "\n")),
		TokenCount: tokenCount,
	}, nil
}
