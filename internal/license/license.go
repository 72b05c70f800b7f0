// Package license checks the licenses of declared Python and NPM
// dependencies against an allowlist. License data comes from pip-licenses
// and license-checker-js run inside the repository.
package license

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	regexp "github.com/wasilibs/go-re2"

	"github.com/emircanakalin/PSA/internal/tools"
	"github.com/emircanakalin/PSA/internal/types"
)

// Ecosystem names used on findings.
const (
	Python = "python"
	NPM    = "npm"
)

const (
	requirementsFile = "requirements.txt"
	packageJSON      = "package.json"
	nodeModules      = "node_modules"
	unknownLicense   = "Unknown"
	pypiURL          = "https://pypi.org/pypi"
)

// Result of a license check.
type Result struct {
	Findings []types.LicenseFinding
	// Checked lists the ecosystems whose tool output was evaluated.
	Checked []string
	// Warnings are conditions that stopped an ecosystem from being checked.
	Warnings []string
}

// Options configure Check.
type Options struct {
	Runner tools.Runner
	Logger *zerolog.Logger
}

// Check evaluates every ecosystem present under root. An empty allowlist
// disables the check. Tool failures are reported as warnings, not errors;
// the returned error is only set when ctx is done.
func Check(ctx context.Context, root string, allowed []string, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	res := Result{Findings: []types.LicenseFinding{}}
	if len(allowed) == 0 {
		log.Info().Msg("license allowlist is empty, skipping license check")
		return res, nil
	}
	al := NewAllowlist(allowed)
	runner := opts.Runner
	if runner == nil {
		runner = tools.NewExecRunner(nil)
	}
	warn := func(msg string) {
		log.Warn().Msg(msg)
		res.Warnings = append(res.Warnings, msg)
	}

	if exists(filepath.Join(root, requirementsFile)) {
		log.Debug().Msg("checking Python (requirements.txt) licenses")
		fs, err := checkPython(ctx, root, al, runner)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return res, cerr
			}
			warn(err.Error())
		} else {
			res.Checked = append(res.Checked, Python)
			res.Findings = append(res.Findings, fs...)
		}
	}
	if exists(filepath.Join(root, packageJSON)) {
		log.Debug().Msg("checking NPM (package.json) licenses")
		fs, err := checkNPM(ctx, root, al, runner)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return res, cerr
			}
			warn(err.Error())
		} else {
			res.Checked = append(res.Checked, NPM)
			res.Findings = append(res.Findings, fs...)
		}
	}
	return res, nil
}

// Allowlist matches license strings against allowed license names. A name
// matches when it appears as a whole word, ignoring case, so "MIT" accepts
// "(MIT OR Apache-2.0)" while "ISC" does not accept "MISC".
type Allowlist struct {
	res []*regexp.Regexp
}

// NewAllowlist compiles the allowed names. Blank entries are ignored.
func NewAllowlist(names []string) Allowlist {
	var al Allowlist
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(n) + `\b`)
		if err != nil {
			continue
		}
		al.res = append(al.res, re)
	}
	return al
}

// Allows reports whether license is covered by the allowlist.
func (a Allowlist) Allows(license string) bool {
	for _, re := range a.res {
		if re.MatchString(license) {
			return true
		}
	}
	return false
}

// ParseRequirements returns the package names declared in a requirements
// file, in order of first appearance. Comments, blank lines and option
// lines are skipped; "#egg=" names, version specifiers and extras are
// handled.
func ParseRequirements(r io.Reader) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.LastIndex(line, "#egg="); i >= 0 {
			line = line[i+len("#egg="):]
		}
		name := line
		for _, sep := range []string{";", "==", "!=", ">=", "<=", ">", "<", "[", "~="} {
			if i := strings.Index(name, sep); i >= 0 {
				name = name[:i]
			}
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, "-") {
			continue
		}
		if !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			out = append(out, name)
		}
	}
	return out, sc.Err()
}

type pipPackage struct {
	Name    string `json:"Name"`
	Version string `json:"Version"`
	License string `json:"License"`
}

func checkPython(ctx context.Context, root string, al Allowlist, runner tools.Runner) ([]types.LicenseFinding, error) {
	f, err := os.Open(filepath.Join(root, requirementsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", requirementsFile, err)
	}
	declared, err := ParseRequirements(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", requirementsFile, err)
	}
	want := make(map[string]bool, len(declared))
	for _, p := range declared {
		want[strings.ToLower(p)] = true
	}

	out, err := runner.Run(ctx, root, tools.PipLicenses, "--format=json", "--pypi-url="+pypiURL)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return nil, fmt.Errorf("'%s' command not found, skipping Python license check", tools.PipLicenses)
		}
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with status %d (is 'pip install -r requirements.txt' complete?): %s",
			tools.PipLicenses, out.ExitCode, strings.TrimSpace(string(out.Stderr)))
	}
	var pkgs []pipPackage
	if err := json.Unmarshal(out.Stdout, &pkgs); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", tools.PipLicenses, err)
	}

	var findings []types.LicenseFinding
	for _, p := range pkgs {
		if p.Name == "" || !want[strings.ToLower(p.Name)] {
			continue
		}
		lic := p.License
		if lic == "" {
			lic = unknownLicense
		}
		if al.Allows(lic) {
			continue
		}
		findings = append(findings, types.LicenseFinding{Ecosystem: Python, Package: p.Name, Version: p.Version, License: lic})
	}
	return findings, nil
}

// npmLicenses accepts both the string and the list form license-checker
// emits for the licenses field.
type npmLicenses string

func (l *npmLicenses) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = npmLicenses(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*l = npmLicenses(strings.Join(list, " OR "))
	return nil
}

type npmPackage struct {
	Licenses *npmLicenses `json:"licenses"`
}

func checkNPM(ctx context.Context, root string, al Allowlist, runner tools.Runner) ([]types.LicenseFinding, error) {
	if st, err := os.Stat(filepath.Join(root, nodeModules)); err != nil || !st.IsDir() {
		return nil, errors.New("'package.json' found but 'node_modules' directory is missing, skipping NPM license check (run 'npm install' first)")
	}
	out, err := runner.Run(ctx, root, tools.LicenseChecker, "--json")
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return nil, fmt.Errorf("'%s' command not found, skipping NPM license check", tools.LicenseChecker)
		}
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with status %d (is 'npm install' complete?): %s",
			tools.LicenseChecker, out.ExitCode, strings.TrimSpace(string(out.Stderr)))
	}
	var deps map[string]npmPackage
	if err := json.Unmarshal(out.Stdout, &deps); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", tools.LicenseChecker, err)
	}
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var findings []types.LicenseFinding
	for _, k := range keys {
		lic := unknownLicense
		if l := deps[k].Licenses; l != nil && *l != "" {
			lic = string(*l)
		}
		if al.Allows(lic) {
			continue
		}
		name, version := splitNPMKey(k)
		findings = append(findings, types.LicenseFinding{Ecosystem: NPM, Package: name, Version: version, License: lic})
	}
	return findings, nil
}

// splitNPMKey splits "name@version", keeping the leading @ of scoped names.
func splitNPMKey(k string) (string, string) {
	if i := strings.LastIndex(k, "@"); i > 0 {
		return k[:i], k[i+1:]
	}
	return k, ""
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
