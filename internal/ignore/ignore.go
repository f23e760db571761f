package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the per-directory pattern file read by LoadPatterns.
const IgnoreFileName = ".gitignore"

// LoadPatterns reads the .gitignore file of exactly one directory. A missing
// file yields an empty slice, not an error. Lines are trimmed; blank lines
// and comments are dropped. No glob interpretation happens here; matching
// semantics belong to the compiled matcher.
func LoadPatterns(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Matcher evaluates a composed pattern stack with standard gitignore
// semantics: globs, anchoring, and `!` negation, with the last matching
// pattern winning.
type Matcher struct {
	compiled *gitignore.GitIgnore
}

// Compile builds a Matcher from patterns ordered least to most specific
// (ancestor patterns first, current directory's own patterns last).
func Compile(patterns []string) *Matcher {
	return &Matcher{compiled: gitignore.CompileIgnoreLines(patterns...)}
}

// Matches reports whether the root-relative path is ignored. Directory
// paths are matched with a trailing slash so directory-only patterns apply.
func (m *Matcher) Matches(relPath string, isDir bool) bool {
	if m == nil || m.compiled == nil {
		return false
	}
	p := filepath.ToSlash(relPath)
	if isDir && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return m.compiled.MatchesPath(p)
}
