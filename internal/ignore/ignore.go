// Package ignore loads the repository's .psaignore file. It uses gitignore
// syntax and is applied on top of the scan's exclusion policy.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the ignore file looked up at the scan root.
const FileName = ".psaignore"

// Matcher reports whether a relative path is ignored. The zero value
// ignores nothing.
type Matcher struct {
	gi *gitignore.GitIgnore
}

// Load compiles the ignore file at path. A missing file yields an empty
// matcher together with the open error.
func Load(path string) (Matcher, error) {
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{gi: gi}, nil
}

// LoadRoot loads root/.psaignore, ignoring a missing file.
func LoadRoot(root string) Matcher {
	m, _ := Load(filepath.Join(root, FileName))
	return m
}

// FromLines compiles gitignore-style lines.
func FromLines(lines ...string) Matcher {
	if len(lines) == 0 {
		return Matcher{}
	}
	return Matcher{gi: gitignore.CompileIgnoreLines(lines...)}
}

// Match reports whether rel (slash or OS separated) is ignored.
func (m Matcher) Match(rel string) bool {
	if m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(filepath.ToSlash(rel))
}

// Empty reports whether the matcher has no patterns.
func (m Matcher) Empty() bool { return m.gi == nil }

// Append ensures pattern is present in root/.psaignore, creating the file if
// needed. Idempotent.
func Append(root, pattern string) error {
	pattern = strings.TrimSpace(pattern)
	path := filepath.Join(root, FileName)
	existing := map[string]bool{}
	endsWithNewline := true
	if b, err := os.ReadFile(path); err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(b)))
		for sc.Scan() {
			existing[strings.TrimSpace(sc.Text())] = true
		}
		endsWithNewline = len(b) == 0 || b[len(b)-1] == '\n'
	}
	if existing[pattern] {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if !endsWithNewline {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(pattern + "\n")
	return err
}
