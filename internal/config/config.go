package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emircanakalin/PSA/internal/types"
)

// DefaultPath is where the GitHub Action looks for the configuration,
// relative to the repository.
const DefaultPath = ".github/security-config.yml"

// RootFileName is the fallback configuration file name for local runs.
const RootFileName = "security-config.yml"

// ErrNoConfig is returned when no configuration file could be located.
var ErrNoConfig = errors.New("no config file found")

// FileConfig is the on-disk YAML configuration shape for PSA.
type FileConfig struct {
	SensitiveDataPatterns []string            `yaml:"sensitive_data_patterns,omitempty"`
	AllowedLicenses       []string            `yaml:"allowed_licenses,omitempty"`
	DangerousFunctions    map[string][]string `yaml:"dangerous_functions,omitempty"`

	// Extra directory names and file suffixes added to the default
	// exclusions of both scans.
	ExcludeDirs     []string `yaml:"exclude_dirs,omitempty"`
	ExcludeSuffixes []string `yaml:"exclude_suffixes,omitempty"`
	Include         []string `yaml:"include,omitempty"`
	Exclude         []string `yaml:"exclude,omitempty"`

	MaxBytes        *int64 `yaml:"max_bytes,omitempty"`
	MaxLineBytes    *int   `yaml:"max_line_bytes,omitempty"`
	Threads         *int   `yaml:"threads,omitempty"`
	FailOnDangerous *bool  `yaml:"fail_on_dangerous,omitempty"`

	// Checks restricts which checks run. Empty runs all of them.
	Checks []string `yaml:"checks,omitempty"`
	// Languages adds extension to language entries, e.g. ".pyw": python.
	Languages map[string]string `yaml:"languages,omitempty"`

	IaC *IaCConfig `yaml:"iac,omitempty"`
}

// IaCConfig holds configuration for the checkov integration.
type IaCConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`
	// Directory is scanned instead of the repository root when set. Relative
	// paths are resolved against the repository.
	Directory  *string  `yaml:"directory,omitempty"`
	Framework  []string `yaml:"framework,omitempty"`
	SkipChecks []string `yaml:"skip_checks,omitempty"`
	// Binary is an explicit path to the checkov executable.
	Binary *string `yaml:"binary,omitempty"`
}

// LoadFile reads a YAML config file from the provided path. An empty file
// yields an empty configuration.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Locate resolves the configuration file for repoRoot. An explicit path
// (flag or INPUT_CONFIG_PATH) wins. When it is empty or names the default
// Action location and does not exist, the search continues with
// repoRoot/.github/security-config.yml, repoRoot/security-config.yml and
// security-config.yml in the parent of repoRoot.
//
// If nothing exists the first candidate is returned together with
// ErrNoConfig.
func Locate(repoRoot, explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if explicit == "" || strings.HasSuffix(filepath.ToSlash(explicit), DefaultPath) {
		candidates = append(candidates,
			filepath.Join(repoRoot, filepath.FromSlash(DefaultPath)),
			filepath.Join(repoRoot, RootFileName),
		)
		if abs, err := filepath.Abs(repoRoot); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(abs), RootFileName))
		}
	}
	for _, p := range candidates {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return candidates[0], fmt.Errorf("%s: %w", candidates[0], ErrNoConfig)
}

// Load locates and reads the configuration for repoRoot. A missing file
// returns an empty configuration and an error wrapping ErrNoConfig, which
// callers treat as a warning. A malformed file is a hard error.
func Load(repoRoot, explicit string) (FileConfig, string, error) {
	p, err := Locate(repoRoot, explicit)
	if err != nil {
		return FileConfig{}, p, err
	}
	cfg, err := LoadFile(p)
	return cfg, p, err
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(base, "psa", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, ErrNoConfig
}

// Merge overlays over on base: set fields of over replace those of base,
// map entries are merged key by key.
func Merge(base, over FileConfig) FileConfig {
	out := base
	if over.SensitiveDataPatterns != nil {
		out.SensitiveDataPatterns = over.SensitiveDataPatterns
	}
	if over.AllowedLicenses != nil {
		out.AllowedLicenses = over.AllowedLicenses
	}
	if over.DangerousFunctions != nil {
		out.DangerousFunctions = mergeMap(base.DangerousFunctions, over.DangerousFunctions)
	}
	if over.ExcludeDirs != nil {
		out.ExcludeDirs = over.ExcludeDirs
	}
	if over.ExcludeSuffixes != nil {
		out.ExcludeSuffixes = over.ExcludeSuffixes
	}
	if over.Include != nil {
		out.Include = over.Include
	}
	if over.Exclude != nil {
		out.Exclude = over.Exclude
	}
	if over.MaxBytes != nil {
		out.MaxBytes = over.MaxBytes
	}
	if over.MaxLineBytes != nil {
		out.MaxLineBytes = over.MaxLineBytes
	}
	if over.Threads != nil {
		out.Threads = over.Threads
	}
	if over.FailOnDangerous != nil {
		out.FailOnDangerous = over.FailOnDangerous
	}
	if over.Checks != nil {
		out.Checks = over.Checks
	}
	if over.Languages != nil {
		out.Languages = mergeMap(base.Languages, over.Languages)
	}
	if over.IaC != nil {
		out.IaC = over.IaC
	}
	return out
}

func mergeMap[V any](a, b map[string]V) map[string]V {
	out := make(map[string]V, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Validate rejects unknown check names and negative limits.
func (fc FileConfig) Validate() error {
	for _, c := range fc.Checks {
		if !knownCheck(types.Check(strings.TrimSpace(c))) {
			return fmt.Errorf("unknown check %q", c)
		}
	}
	if fc.MaxBytes != nil && *fc.MaxBytes < 0 {
		return errors.New("max_bytes must not be negative")
	}
	if fc.MaxLineBytes != nil && *fc.MaxLineBytes < 0 {
		return errors.New("max_line_bytes must not be negative")
	}
	if fc.Threads != nil && *fc.Threads < 0 {
		return errors.New("threads must not be negative")
	}
	return nil
}

func knownCheck(c types.Check) bool {
	for _, k := range types.AllChecks {
		if k == c {
			return true
		}
	}
	return false
}

// Enabled reports whether check c should run.
func (fc FileConfig) Enabled(c types.Check) bool {
	if len(fc.Checks) == 0 {
		return true
	}
	for _, s := range fc.Checks {
		if types.Check(strings.TrimSpace(s)) == c {
			return true
		}
	}
	return false
}

// GetIaCConfig returns the IaC configuration with defaults applied.
func (fc FileConfig) GetIaCConfig() IaCConfig {
	if fc.IaC == nil {
		return IaCConfig{}
	}
	return *fc.IaC
}

// IsEnabled returns true unless the scan was switched off explicitly.
func (ic IaCConfig) IsEnabled() bool {
	if ic.Enabled == nil {
		return true
	}
	return *ic.Enabled
}

// GetBinaryPath returns the custom checkov path or empty string.
func (ic IaCConfig) GetBinaryPath() string {
	if ic.Binary == nil {
		return ""
	}
	return *ic.Binary
}

// GetDirectory returns the IaC directory for repoRoot.
func (ic IaCConfig) GetDirectory(repoRoot string) string {
	if ic.Directory == nil || *ic.Directory == "" {
		return repoRoot
	}
	if filepath.IsAbs(*ic.Directory) {
		return *ic.Directory
	}
	return filepath.Join(repoRoot, *ic.Directory)
}
