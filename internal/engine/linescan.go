package engine

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/emircanakalin/PSA/internal/rules"
	"github.com/emircanakalin/PSA/internal/types"
)

// SkipReason explains why a candidate file contributed no scan.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipUnreadable
	SkipTooLarge
	SkipUnmapped
	SkipNoRules
)

func (s SkipReason) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipUnreadable:
		return "unreadable"
	case SkipTooLarge:
		return "too_large"
	case SkipUnmapped:
		return "unmapped"
	case SkipNoRules:
		return "no_rules"
	default:
		return "unknown"
	}
}

// FileResult is the outcome of scanning one file. When Skip is not SkipNone
// the file contributed no findings and Err may carry the cause.
type FileResult struct {
	Path     string
	Findings []types.Finding
	Lines    int
	Skip     SkipReason
	Err      error
}

// LineOptions tune the line scanner.
type LineOptions struct {
	Check types.Check
	// MaxBytes skips files larger than this (0 = unlimited).
	MaxBytes int64
	// MaxLineBytes truncates longer lines before matching (0 = unlimited).
	MaxLineBytes int
	// Snippets records the trimmed matching line on each finding.
	Snippets bool
}

const maxSnippetRunes = 200

// readFile is swapped in tests to observe open attempts.
var readFile = os.ReadFile

// MatchLine evaluates rs against line in order and returns the first rule
// that matches. At most one rule is reported per line.
func MatchLine(line string, rs []rules.Rule) (rules.Rule, bool) {
	for _, r := range rs {
		if r.Match(line) {
			return r, true
		}
	}
	return rules.Rule{}, false
}

// ScanFile reads the file at path and scans it against rs. rel is the path
// recorded on findings. Read failures yield SkipUnreadable and no findings.
func ScanFile(path, rel string, rs []rules.Rule, opts LineOptions) FileResult {
	if opts.MaxBytes > 0 {
		if st, err := os.Stat(path); err == nil && st.Size() > opts.MaxBytes {
			return FileResult{Path: rel, Skip: SkipTooLarge}
		}
	}
	data, err := readFile(path)
	if err != nil {
		return FileResult{Path: rel, Skip: SkipUnreadable, Err: err}
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return FileResult{Path: rel, Skip: SkipTooLarge}
	}
	return ScanBytes(data, rel, rs, opts)
}

// ScanBytes scans in-memory content line by line. Lines end at "\n", "\r\n"
// or a lone "\r"; numbering starts at 1. Invalid UTF-8 is dropped from each
// line before matching.
func ScanBytes(data []byte, rel string, rs []rules.Rule, opts LineOptions) FileResult {
	res := FileResult{Path: rel}
	lineNo := 0
	for len(data) > 0 {
		var line []byte
		line, data = nextLine(data)
		lineNo++
		text := decodeLine(line, opts.MaxLineBytes)
		r, ok := MatchLine(text, rs)
		if !ok {
			continue
		}
		f := types.Finding{Check: opts.Check, Path: rel, Line: lineNo, Rule: r.ID}
		if opts.Snippets {
			f.Snippet = snippet(text)
		}
		res.Findings = append(res.Findings, f)
	}
	res.Lines = lineNo
	return res
}

// nextLine splits off the first line of data with universal newlines.
func nextLine(data []byte) (line, rest []byte) {
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		return data, nil
	}
	if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
		return data[:i], data[i+2:]
	}
	return data[:i], data[i+1:]
}

func decodeLine(b []byte, max int) string {
	if max > 0 && len(b) > max {
		b = b[:max]
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxSnippetRunes]) + "…"
}
