// Package pipeline runs the PSA checks in order (sensitive data, licenses,
// IaC, dangerous functions) and collects their outcomes into one Report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emircanakalin/PSA/internal/config"
	"github.com/emircanakalin/PSA/internal/engine"
	"github.com/emircanakalin/PSA/internal/iac"
	"github.com/emircanakalin/PSA/internal/license"
	"github.com/emircanakalin/PSA/internal/rules"
	"github.com/emircanakalin/PSA/internal/tools"
	"github.com/emircanakalin/PSA/internal/types"
)

const (
	DefaultMaxBytes     int64 = 10 << 20
	DefaultMaxLineBytes       = 1 << 20
)

// Options configure a pipeline run.
type Options struct {
	Root       string
	ConfigPath string
	Config     config.FileConfig

	// Threads overrides the configured thread count when > 0.
	Threads int
	// UseIgnoreFile applies Root/.psaignore to the pattern scans.
	UseIgnoreFile bool
	// FailOnDangerous makes dangerous-function findings fail the run.
	FailOnDangerous bool
	// Snippets keeps the matching line on dangerous-function findings.
	Snippets bool

	// Runner executes external tools. Nil runs them as subprocesses.
	Runner tools.Runner
	Logger *zerolog.Logger
	// Progress, when set, is called after every file of the pattern scans.
	Progress func(check types.Check, done, total int)
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check types.Check `json:"check"`
	// Enabled is false when the check was switched off by configuration.
	Enabled bool `json:"enabled"`

	Findings []types.Finding        `json:"findings,omitempty"`
	Licenses []types.LicenseFinding `json:"licenses,omitempty"`
	IaC      []types.IaCFinding     `json:"iac,omitempty"`

	Warnings     []string      `json:"warnings,omitempty"`
	InvalidRules []string      `json:"invalid_rules,omitempty"`
	FilesScanned int           `json:"files_scanned,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Count returns the number of findings of any kind.
func (c CheckResult) Count() int {
	return len(c.Findings) + len(c.Licenses) + len(c.IaC)
}

// Report aggregates all checks of a run, always in types.AllChecks order.
type Report struct {
	Root            string        `json:"root"`
	ConfigPath      string        `json:"config_path,omitempty"`
	Checks          []CheckResult `json:"checks"`
	FailOnDangerous bool          `json:"fail_on_dangerous"`
	Duration        time.Duration `json:"duration_ns"`
}

// Result returns the outcome of check c.
func (r Report) Result(c types.Check) (CheckResult, bool) {
	for _, cr := range r.Checks {
		if cr.Check == c {
			return cr, true
		}
	}
	return CheckResult{}, false
}

// Failing reports whether findings of c fail the run.
func (r Report) Failing(c types.Check) bool {
	return !c.Advisory() || r.FailOnDangerous
}

// Failed reports whether any failing check produced findings. Dangerous
// function findings are advisory unless FailOnDangerous is set.
func (r Report) Failed() bool {
	for _, cr := range r.Checks {
		if cr.Count() > 0 && r.Failing(cr.Check) {
			return true
		}
	}
	return false
}

// Total returns the number of findings across all checks.
func (r Report) Total() int {
	n := 0
	for _, cr := range r.Checks {
		n += cr.Count()
	}
	return n
}

// Run executes every enabled check. Checks never abort each other; the
// returned error is only set when ctx is done.
func Run(ctx context.Context, opts Options) (Report, error) {
	started := time.Now()
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	fc := opts.Config
	rep := Report{
		Root:            opts.Root,
		ConfigPath:      opts.ConfigPath,
		FailOnDangerous: opts.FailOnDangerous || (fc.FailOnDangerous != nil && *fc.FailOnDangerous),
	}
	iacCfg := fc.GetIaCConfig()
	runner := opts.Runner
	if runner == nil {
		runner = tools.NewExecRunner(tools.NewBinaryManager(map[string]string{tools.Checkov: iacCfg.GetBinaryPath()}))
	}

	for _, c := range types.AllChecks {
		cr := CheckResult{Check: c, Enabled: fc.Enabled(c)}
		if c == types.CheckIaC && !iacCfg.IsEnabled() {
			cr.Enabled = false
		}
		if !cr.Enabled {
			log.Debug().Str("check", string(c)).Msg("check disabled")
			rep.Checks = append(rep.Checks, cr)
			continue
		}
		t0 := time.Now()
		clog := log.With().Str("check", string(c)).Logger()
		var err error
		switch c {
		case types.CheckSensitiveData, types.CheckDangerousFunction:
			err = runPatterns(ctx, opts, c, &clog, &cr)
		case types.CheckLicenses:
			var lr license.Result
			lr, err = license.Check(ctx, opts.Root, fc.AllowedLicenses, license.Options{Runner: runner, Logger: &clog})
			cr.Licenses = lr.Findings
			cr.Warnings = lr.Warnings
		case types.CheckIaC:
			var ir iac.Result
			ir, err = iac.Scan(ctx, iacCfg.GetDirectory(opts.Root), iac.Options{
				Framework:  iacCfg.Framework,
				SkipChecks: iacCfg.SkipChecks,
				Runner:     runner,
				Logger:     &clog,
			})
			cr.IaC = ir.Findings
			cr.Warnings = ir.Warnings
		}
		cr.Duration = time.Since(t0)
		if err != nil {
			return rep, err
		}
		rep.Checks = append(rep.Checks, cr)
	}
	rep.Duration = time.Since(started)
	return rep, nil
}

func runPatterns(ctx context.Context, opts Options, c types.Check, log *zerolog.Logger, cr *CheckResult) error {
	ec := EngineConfig(opts.Root, opts.Config, c)
	ec.Logger = log
	ec.UseIgnoreFile = opts.UseIgnoreFile
	ec.Snippets = opts.Snippets
	if opts.Threads > 0 {
		ec.Threads = opts.Threads
	}
	if opts.Progress != nil {
		total, err := engine.CountTargets(ctx, ec, c)
		if err != nil {
			return err
		}
		done := 0
		ec.Progress = func() {
			done++
			opts.Progress(c, done, total)
		}
	}

	var res engine.Result
	var err error
	if c == types.CheckSensitiveData {
		res, err = engine.ScanSensitiveData(ctx, ec)
	} else {
		res, err = engine.ScanDangerousFunctions(ctx, ec)
	}
	if err != nil {
		return err
	}
	cr.Findings = res.Findings
	cr.FilesScanned = res.FilesScanned
	if n := res.FilesSkipped[engine.SkipTooLarge]; n > 0 {
		msg := fmt.Sprintf("%d file(s) larger than %d bytes were not scanned (raise max_bytes to include them)", n, ec.MaxBytes)
		log.Warn().Int("files", n).Int64("max_bytes", ec.MaxBytes).Msg("files skipped by size limit")
		cr.Warnings = append(cr.Warnings, msg)
	}
	for _, ir := range res.InvalidRules {
		cr.InvalidRules = append(cr.InvalidRules, ir.Error())
	}
	return nil
}

// EngineConfig maps file configuration onto the engine for check c.
func EngineConfig(root string, fc config.FileConfig, c types.Check) engine.Config {
	ec := engine.Config{
		Root:         root,
		IncludeGlobs: fc.Include,
		ExcludeGlobs: fc.Exclude,
		MaxBytes:     DefaultMaxBytes,
		MaxLineBytes: DefaultMaxLineBytes,
	}
	if fc.MaxBytes != nil {
		ec.MaxBytes = *fc.MaxBytes
	}
	if fc.MaxLineBytes != nil {
		ec.MaxLineBytes = *fc.MaxLineBytes
	}
	if fc.Threads != nil {
		ec.Threads = *fc.Threads
	}
	var pol engine.ExclusionPolicy
	if c == types.CheckDangerousFunction {
		ec.Functions = fc.DangerousFunctions
		ec.Languages = rules.DefaultLanguageMap().With(fc.Languages)
		pol = engine.DefaultFunctionExclusions().With(fc.ExcludeDirs, fc.ExcludeSuffixes)
	} else {
		ec.Patterns = fc.SensitiveDataPatterns
		pol = engine.DefaultSensitiveExclusions().With(fc.ExcludeDirs, fc.ExcludeSuffixes)
	}
	ec.Exclusions = &pol
	return ec
}
