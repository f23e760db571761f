// Package patch applies full-content overwrites and exact-text replacements
// to single files, reporting each change as a unified diff.
package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"codebase-context-server/internal/filesystem"
)

var (
	// ErrFileNotFound is returned by Replace when the target file does not
	// exist. Overwrite treats absence as creation, not an error.
	ErrFileNotFound = errors.New("file not found")
	// ErrTextNotFound is returned by Replace when oldText, after newline
	// normalization, is not a substring of the file content.
	ErrTextNotFound = errors.New("old text not found in file")
)

const diffContextLines = 3

// Status describes the outcome of an Overwrite.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUnchanged Status = "unchanged"
	StatusModified  Status = "modified"
)

// Result is the outcome of an Overwrite. Diff is set only for
// StatusModified.
type Result struct {
	Status Status
	Diff   string
}

// Engine applies patches through the filesystem adapter. Writes are atomic
// (temp file plus rename); the engine assumes a single writer per file, the
// caller serializes concurrent mutations.
type Engine struct {
	fs filesystem.Adapter
}

// NewEngine creates a patch Engine.
func NewEngine(fs filesystem.Adapter) *Engine {
	return &Engine{fs: fs}
}

// Overwrite writes newContent to path unconditionally. A missing file is
// created; identical prior content reports StatusUnchanged; otherwise the
// result carries a unified diff of prior vs new content.
func (e *Engine) Overwrite(path, newContent string) (*Result, error) {
	exists, err := e.fs.FileExists(path)
	if err != nil {
		return nil, err
	}
	var before string
	if exists {
		content, err := e.fs.ReadFileBytes(path)
		if err != nil {
			return nil, err
		}
		before = string(content)
	}

	if err := e.fs.WriteFileBytesAtomic(path, []byte(newContent), 0644); err != nil {
		return nil, err
	}

	if !exists {
		return &Result{Status: StatusCreated}, nil
	}
	if before == newContent {
		return &Result{Status: StatusUnchanged}, nil
	}
	diff, err := UnifiedDiff(path, before, newContent)
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusModified, Diff: diff}, nil
}

// Replace substitutes the first occurrence of oldText with newText in the
// file at path and returns a whole-file unified diff. Line endings of both
// the file content and oldText are normalized to \n before matching.
// Multiple occurrences are not rejected; only the first is replaced.
func (e *Engine) Replace(path, oldText, newText string) (string, error) {
	exists, err := e.fs.FileExists(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	content, err := e.fs.ReadFileBytes(path)
	if err != nil {
		return "", err
	}

	before := string(e.fs.NormalizeNewlines(content))
	normalizedOld := filesystem.NormalizeText(oldText)
	if !strings.Contains(before, normalizedOld) {
		return "", fmt.Errorf("%w: %s", ErrTextNotFound, path)
	}
	after := strings.Replace(before, normalizedOld, newText, 1)

	if err := e.fs.WriteFileBytesAtomic(path, []byte(after), 0644); err != nil {
		return "", err
	}
	return UnifiedDiff(path, before, after)
}

// UnifiedDiff renders a unified diff of before vs after with three context
// lines, naming the path under its original and modified roles.
func UnifiedDiff(path, before, after string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path + " (original)",
		ToFile:   path + " (modified)",
		Context:  diffContextLines,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff for %s: %w", path, err)
	}
	return text, nil
}
