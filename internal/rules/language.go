package rules

import (
	"path/filepath"
	"sort"
	"strings"
)

// Language is a category key grouping dangerous-function rules.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	PHP        Language = "php"
	Go         Language = "go"
)

// LanguageMap maps a file extension (with its leading dot) to a Language.
type LanguageMap map[string]Language

// DefaultLanguageMap returns the built-in extension mapping.
func DefaultLanguageMap() LanguageMap {
	return LanguageMap{
		".py":  Python,
		".js":  JavaScript,
		".jsx": JavaScript,
		".ts":  JavaScript,
		".tsx": JavaScript,
		".php": PHP,
		".go":  Go,
	}
}

// Lookup returns the language for ext. The boolean is false when the
// extension has no mapping.
func (m LanguageMap) Lookup(ext string) (Language, bool) {
	if ext == "" {
		return "", false
	}
	l, ok := m[ext]
	return l, ok
}

// LookupPath resolves the language of a file by its name.
func (m LanguageMap) LookupPath(name string) (Language, bool) {
	return m.Lookup(Ext(name))
}

// With returns a copy of m extended with extra entries. Keys without a
// leading dot get one.
func (m LanguageMap) With(extra map[string]string) LanguageMap {
	out := make(LanguageMap, len(m)+len(extra))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range extra {
		k = strings.TrimSpace(k)
		if k == "" || v == "" {
			continue
		}
		if !strings.HasPrefix(k, ".") {
			k = "." + k
		}
		out[k] = Language(v)
	}
	return out
}

// Extensions returns the extensions mapped to lang, sorted.
func (m LanguageMap) Extensions(lang Language) []string {
	var out []string
	for ext, l := range m {
		if l == lang {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// Ext returns the extension of the last path element. Leading dots of the
// base name do not start an extension, so ".env" and ".py" have none.
func Ext(name string) string {
	base := filepath.Base(name)
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndexByte(trimmed, '.')
	if i < 0 {
		return ""
	}
	return trimmed[i:]
}
