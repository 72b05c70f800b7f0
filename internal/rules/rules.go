package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	regexp "github.com/wasilibs/go-re2"
)

// Rule is a compiled detection rule. ID is the text the rule was configured
// with: the regex source for patterns, the bare name for functions.
type Rule struct {
	ID       string
	Language Language
	re       *regexp.Regexp
}

// Match reports whether the rule matches anywhere in line.
func (r Rule) Match(line string) bool {
	return r.re != nil && r.re.MatchString(line)
}

// Valid reports whether the rule carries a compiled matcher.
func (r Rule) Valid() bool { return r.re != nil }

// InvalidRule records a configured rule that could not be compiled.
type InvalidRule struct {
	Pattern string
	Err     error
}

func (e InvalidRule) Error() string {
	return fmt.Sprintf("invalid rule %q: %v", e.Pattern, e.Err)
}

func (e InvalidRule) Unwrap() error { return e.Err }

// CompilePatterns compiles free-form regular expressions in order. Patterns
// that fail to compile are returned separately and left out of the rule list.
func CompilePatterns(patterns []string) ([]Rule, []InvalidRule) {
	out := make([]Rule, 0, len(patterns))
	var bad []InvalidRule
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			bad = append(bad, InvalidRule{Pattern: p, Err: err})
			continue
		}
		out = append(out, Rule{ID: p, re: re})
	}
	return out, bad
}

// WholeWord builds the expression used for a function name: the name matched
// literally, case-sensitive, delimited by word boundaries on both sides.
func WholeWord(name string) string {
	return `\b` + regexp.QuoteMeta(name) + `\b`
}

// CompileFunction compiles a single function-name rule for lang.
func CompileFunction(lang Language, name string) (Rule, error) {
	if strings.TrimSpace(name) == "" {
		return Rule{}, InvalidRule{Pattern: name, Err: fmt.Errorf("empty function name")}
	}
	re, err := regexp.Compile(WholeWord(name))
	if err != nil {
		return Rule{}, InvalidRule{Pattern: name, Err: err}
	}
	return Rule{ID: name, Language: lang, re: re}, nil
}

// FunctionSet partitions function-name rules by language.
type FunctionSet map[Language][]Rule

// CompileFunctions compiles the per-language function lists, keeping the
// configured order within each language.
func CompileFunctions(cfg map[string][]string) (FunctionSet, []InvalidRule) {
	set := FunctionSet{}
	var bad []InvalidRule
	for _, key := range sortedKeys(cfg) {
		lang := Language(key)
		for _, name := range cfg[key] {
			r, err := CompileFunction(lang, name)
			var inv InvalidRule
			if errors.As(err, &inv) {
				bad = append(bad, inv)
				continue
			}
			set[lang] = append(set[lang], r)
		}
	}
	return set, bad
}

// For returns the rules configured for lang, or nil.
func (s FunctionSet) For(lang Language) []Rule { return s[lang] }

// Len returns the total number of rules across all languages.
func (s FunctionSet) Len() int {
	n := 0
	for _, rs := range s {
		n += len(rs)
	}
	return n
}

// Languages returns the languages that have at least one rule, sorted.
func (s FunctionSet) Languages() []Language {
	out := make([]Language, 0, len(s))
	for l, rs := range s {
		if len(rs) > 0 {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IDs returns the rule identifiers in order.
func IDs(rs []Rule) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
