package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/emircanakalin/PSA/internal/types"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

const sample = `
sensitive_data_patterns:
  - 'AKIA[0-9A-Z]{16}'
  - 'password\s*='
allowed_licenses: [MIT, Apache-2.0]
dangerous_functions:
  python: [eval, exec]
  javascript: [eval]
threads: 4
max_bytes: 123
checks: [sensitive_data, dangerous_function]
languages:
  .pyw: python
iac:
  enabled: false
  skip_checks: [CKV_AWS_20]
`

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "security-config.yml", sample)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.SensitiveDataPatterns) != 2 || cfg.SensitiveDataPatterns[1] != `password\s*=` {
		t.Fatalf("patterns not loaded verbatim: %#v", cfg.SensitiveDataPatterns)
	}
	if got := cfg.DangerousFunctions["python"]; len(got) != 2 || got[0] != "eval" {
		t.Fatalf("dangerous functions: %#v", cfg.DangerousFunctions)
	}
	if cfg.Threads == nil || *cfg.Threads != 4 {
		t.Fatalf("expected threads=4, got %#v", cfg.Threads)
	}
	if cfg.MaxBytes == nil || *cfg.MaxBytes != 123 {
		t.Fatalf("expected max_bytes=123, got %#v", cfg.MaxBytes)
	}
	if !cfg.Enabled(types.CheckSensitiveData) || cfg.Enabled(types.CheckLicenses) {
		t.Fatalf("checks list not honoured: %#v", cfg.Checks)
	}
	if cfg.Languages[".pyw"] != "python" {
		t.Fatalf("languages: %#v", cfg.Languages)
	}
	ic := cfg.GetIaCConfig()
	if ic.IsEnabled() || len(ic.SkipChecks) != 1 {
		t.Fatalf("iac config: %#v", ic)
	}
}

func TestLoadFile_EmptyAndMalformed(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(writeTemp(t, dir, "empty.yml", ""))
	if err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.SensitiveDataPatterns != nil || !cfg.Enabled(types.CheckIaC) {
		t.Fatalf("expected zero config, got %#v", cfg)
	}
	if _, err := LoadFile(writeTemp(t, dir, "bad.yml", "sensitive_data_patterns: [unclosed\n")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFile(writeTemp(t, dir, "unknown.yml", "checks: [bogus]\n")); err == nil {
		t.Fatal("expected validation error for unknown check")
	}
	if _, err := LoadFile(writeTemp(t, dir, "neg.yml", "threads: -1\n")); err == nil {
		t.Fatal("expected validation error for negative threads")
	}
}

func TestLocate_SearchOrder(t *testing.T) {
	parent := t.TempDir()
	repo := filepath.Join(parent, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Locate(repo, ""); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}

	up := writeTemp(t, parent, RootFileName, "threads: 1\n")
	if p, err := Locate(repo, ""); err != nil || p != up {
		t.Fatalf("expected parent fallback %s, got %s (%v)", up, p, err)
	}

	root := writeTemp(t, repo, RootFileName, "threads: 2\n")
	if p, _ := Locate(repo, ""); p != root {
		t.Fatalf("expected repo root config %s, got %s", root, p)
	}

	gh := writeTemp(t, repo, DefaultPath, "threads: 3\n")
	if p, _ := Locate(repo, ""); p != gh {
		t.Fatalf("expected .github config %s, got %s", gh, p)
	}

	custom := writeTemp(t, parent, "custom.yml", "threads: 4\n")
	if p, _ := Locate(repo, custom); p != custom {
		t.Fatalf("explicit path should win, got %s", p)
	}
}

func TestLocate_ExplicitMissingDoesNotFallBack(t *testing.T) {
	repo := t.TempDir()
	writeTemp(t, repo, RootFileName, "threads: 2\n")
	missing := filepath.Join(repo, "nope.yml")
	p, err := Locate(repo, missing)
	if !errors.Is(err, ErrNoConfig) || p != missing {
		t.Fatalf("expected ErrNoConfig for %s, got %s (%v)", missing, p, err)
	}
}

func TestLoad_MissingIsSoft(t *testing.T) {
	repo := t.TempDir()
	cfg, _, err := Load(filepath.Join(repo, "sub"), "")
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}
	if cfg.Threads != nil {
		t.Fatalf("expected empty config")
	}
}

func TestMerge(t *testing.T) {
	one, two := 1, 2
	base := FileConfig{
		Threads:            &one,
		AllowedLicenses:    []string{"MIT"},
		DangerousFunctions: map[string][]string{"python": {"eval"}},
	}
	over := FileConfig{
		Threads:            &two,
		DangerousFunctions: map[string][]string{"php": {"system"}},
	}
	got := Merge(base, over)
	if *got.Threads != 2 {
		t.Fatalf("threads not overridden")
	}
	if len(got.AllowedLicenses) != 1 {
		t.Fatalf("unset field should keep base value")
	}
	if len(got.DangerousFunctions) != 2 {
		t.Fatalf("maps should merge, got %#v", got.DangerousFunctions)
	}
}

func TestIaCConfig_Directory(t *testing.T) {
	var ic IaCConfig
	if ic.GetDirectory("/repo") != "/repo" {
		t.Fatal("default should be the repo root")
	}
	d := "infra"
	ic.Directory = &d
	if got := ic.GetDirectory("/repo"); got != filepath.Join("/repo", "infra") {
		t.Fatalf("got %s", got)
	}
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, filepath.Join("psa", "config.yml"), "threads: 9\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Threads == nil || *cfg.Threads != 9 {
		t.Fatalf("expected threads=9 from global config, got %#v", cfg.Threads)
	}
}

func TestLoadGlobal_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := LoadGlobal(); err == nil {
		t.Fatal("expected error when no global config dir exists")
	}
}
