package engine

import (
	"path"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// ExclusionPolicy lists directory names pruned during traversal and file
// name suffixes skipped regardless of directory.
type ExclusionPolicy struct {
	Dirs     map[string]bool
	Suffixes []string
}

// NewExclusionPolicy builds a policy from plain lists.
func NewExclusionPolicy(dirs, suffixes []string) ExclusionPolicy {
	p := ExclusionPolicy{Dirs: make(map[string]bool, len(dirs))}
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			p.Dirs[d] = true
		}
	}
	for _, s := range suffixes {
		if s = strings.TrimSpace(s); s != "" {
			p.Suffixes = append(p.Suffixes, s)
		}
	}
	return p
}

var sensitiveExcludeDirs = []string{
	".git", "node_modules", "vendor", "dist", "build", "__pycache__", ".venv", "env",
}

// binary assets and minified bundles
var sensitiveExcludeSuffixes = []string{
	".log", ".lock", ".svg", ".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp",
	".eot", ".ttf", ".woff", ".woff2", ".css",
	".min.js",
}

var functionExcludeDirs = []string{
	".git", "node_modules", "vendor", "dist", "build", "__pycache__",
}

// DefaultSensitiveExclusions is the policy used by the sensitive-data scan
// when the caller does not supply one.
func DefaultSensitiveExclusions() ExclusionPolicy {
	return NewExclusionPolicy(sensitiveExcludeDirs, sensitiveExcludeSuffixes)
}

// DefaultFunctionExclusions is the policy used by the dangerous-function
// scan when the caller does not supply one. It has no suffix list: files are
// selected by the language map instead.
func DefaultFunctionExclusions() ExclusionPolicy {
	return NewExclusionPolicy(functionExcludeDirs, nil)
}

// With returns a copy of p extended with extra directories and suffixes.
func (p ExclusionPolicy) With(dirs, suffixes []string) ExclusionPolicy {
	all := make([]string, 0, len(p.Dirs)+len(dirs))
	for d := range p.Dirs {
		all = append(all, d)
	}
	all = append(all, dirs...)
	return NewExclusionPolicy(all, append(append([]string{}, p.Suffixes...), suffixes...))
}

// ExcludesDir reports whether a directory with this base name is pruned.
func (p ExclusionPolicy) ExcludesDir(name string) bool {
	return p.Dirs[name]
}

// ExcludesFile reports whether a file with this base name is skipped.
// Suffix comparison is case-sensitive.
func (p ExclusionPolicy) ExcludesFile(name string) bool {
	for _, s := range p.Suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// allowedByGlobs returns true if relPath passes the include/exclude globs.
// Includes, if any, act as a positive filter; excludes are subtracted last.
// Each glob is tried against the full slash path and the base name.
func allowedByGlobs(relPath string, includes, excludes []string) bool {
	if len(includes) > 0 && !matchAnyGlob(relPath, includes) {
		return false
	}
	if len(excludes) > 0 && matchAnyGlob(relPath, excludes) {
		return false
	}
	return true
}

func matchAnyGlob(p string, globs []string) bool {
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
		if ok, _ := doublestar.Match(trimGlobPrefix(g), path.Base(p)); ok {
			return true
		}
	}
	return false
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}

// ParseGlobList splits a comma-separated glob list.
func ParseGlobList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
