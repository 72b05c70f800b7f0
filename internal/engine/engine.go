package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/emircanakalin/PSA/internal/ignore"
	"github.com/emircanakalin/PSA/internal/rules"
	"github.com/emircanakalin/PSA/internal/types"
)

// Config controls a single scan invocation.
type Config struct {
	Root string

	// Patterns are the sensitive-data regular expressions, in priority order.
	Patterns []string
	// Functions maps a language key to the dangerous function names for it.
	Functions map[string][]string
	// Languages maps file extensions to language keys. Nil uses
	// rules.DefaultLanguageMap.
	Languages rules.LanguageMap

	// Exclusions overrides the mode's default exclusion policy.
	Exclusions *ExclusionPolicy
	// UseIgnoreFile applies Root/.psaignore when present.
	UseIgnoreFile bool
	IncludeGlobs  []string
	ExcludeGlobs  []string

	MaxBytes     int64
	MaxLineBytes int
	// Threads bounds parallel file scans (0 = GOMAXPROCS, 1 = sequential).
	Threads int
	// Snippets records the matching line on dangerous-function findings.
	Snippets bool

	Logger   *zerolog.Logger
	Progress func()
}

// Result contains findings and scan statistics.
type Result struct {
	Findings     []types.Finding
	FilesScanned int
	FilesSkipped map[SkipReason]int
	InvalidRules []rules.InvalidRule
	Duration     time.Duration
}

func newResult() Result {
	return Result{Findings: []types.Finding{}, FilesSkipped: map[SkipReason]int{}}
}

func (c Config) log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (c Config) walkOptions(def ExclusionPolicy) WalkOptions {
	opts := WalkOptions{Policy: def, Includes: c.IncludeGlobs, Excludes: c.ExcludeGlobs}
	if c.Exclusions != nil {
		opts.Policy = *c.Exclusions
	}
	if c.UseIgnoreFile {
		opts.Ignore = ignore.LoadRoot(c.Root)
	}
	return opts
}

func (c Config) threads() int {
	if c.Threads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Threads
}

// selector picks the rules that apply to a candidate, or a skip reason when
// the file must not be opened at all.
type selector func(Candidate) ([]rules.Rule, SkipReason)

// ScanSensitiveData scans every non-excluded file against the configured
// patterns. Invalid patterns are logged and dropped. With no usable pattern
// the tree is not traversed.
func ScanSensitiveData(ctx context.Context, cfg Config) (Result, error) {
	res := newResult()
	started := time.Now()
	if len(cfg.Patterns) == 0 {
		return res, nil
	}
	compiled, bad := rules.CompilePatterns(cfg.Patterns)
	for _, b := range bad {
		cfg.log().Warn().Str("pattern", b.Pattern).Err(b.Err).Msg("invalid regex pattern skipped")
	}
	res.InvalidRules = bad
	if len(compiled) == 0 {
		return res, nil
	}
	sel := func(Candidate) ([]rules.Rule, SkipReason) { return compiled, SkipNone }
	err := run(ctx, cfg, types.CheckSensitiveData, cfg.walkOptions(DefaultSensitiveExclusions()), sel, &res)
	res.Duration = time.Since(started)
	return res, err
}

// ScanDangerousFunctions scans files whose extension maps to a language with
// configured functions, matching each name as a whole word. Other files are
// never opened.
func ScanDangerousFunctions(ctx context.Context, cfg Config) (Result, error) {
	res := newResult()
	started := time.Now()
	if len(cfg.Functions) == 0 {
		return res, nil
	}
	set, bad := rules.CompileFunctions(cfg.Functions)
	for _, b := range bad {
		cfg.log().Warn().Str("function", b.Pattern).Err(b.Err).Msg("invalid function rule skipped")
	}
	res.InvalidRules = bad
	if set.Len() == 0 {
		return res, nil
	}
	langs := cfg.Languages
	if langs == nil {
		langs = rules.DefaultLanguageMap()
	}
	sel := func(c Candidate) ([]rules.Rule, SkipReason) {
		lang, ok := langs.LookupPath(c.Name)
		if !ok {
			return nil, SkipUnmapped
		}
		rs := set.For(lang)
		if len(rs) == 0 {
			return nil, SkipNoRules
		}
		return rs, SkipNone
	}
	err := run(ctx, cfg, types.CheckDangerousFunction, cfg.walkOptions(DefaultFunctionExclusions()), sel, &res)
	res.Duration = time.Since(started)
	return res, err
}

// CountTargets returns how many files a scan of check would open. It walks
// the tree without reading file contents and counts against the same
// compiled rules the scan uses.
func CountTargets(ctx context.Context, cfg Config, check types.Check) (int, error) {
	var opts WalkOptions
	var accept func(Candidate) bool
	switch check {
	case types.CheckDangerousFunction:
		set, _ := rules.CompileFunctions(cfg.Functions)
		if set.Len() == 0 {
			return 0, nil
		}
		opts = cfg.walkOptions(DefaultFunctionExclusions())
		langs := cfg.Languages
		if langs == nil {
			langs = rules.DefaultLanguageMap()
		}
		accept = func(c Candidate) bool {
			lang, ok := langs.LookupPath(c.Name)
			return ok && len(set.For(lang)) > 0
		}
	default:
		if compiled, _ := rules.CompilePatterns(cfg.Patterns); len(compiled) == 0 {
			return 0, nil
		}
		opts = cfg.walkOptions(DefaultSensitiveExclusions())
		accept = func(Candidate) bool { return true }
	}
	n := 0
	err := Walk(ctx, cfg.Root, opts, func(c Candidate) error {
		if accept(c) {
			n++
		}
		return nil
	})
	return n, err
}

type job struct {
	cand  Candidate
	rules []rules.Rule
}

func run(ctx context.Context, cfg Config, check types.Check, wopts WalkOptions, sel selector, res *Result) error {
	lopts := LineOptions{
		Check:        check,
		MaxBytes:     cfg.MaxBytes,
		MaxLineBytes: cfg.MaxLineBytes,
		Snippets:     cfg.Snippets && check == types.CheckDangerousFunction,
	}
	log := cfg.log()

	collect := func(fr FileResult) {
		if fr.Skip != SkipNone {
			res.FilesSkipped[fr.Skip]++
			switch {
			case fr.Skip == SkipTooLarge:
				log.Warn().Str("path", fr.Path).Int64("max_bytes", cfg.MaxBytes).Msg("file larger than max_bytes skipped")
			case fr.Err != nil:
				log.Debug().Str("path", fr.Path).Err(fr.Err).Msg("could not read file")
			}
		} else {
			res.FilesScanned++
			res.Findings = append(res.Findings, fr.Findings...)
		}
		if cfg.Progress != nil {
			cfg.Progress()
		}
	}

	n := cfg.threads()
	if n <= 1 {
		return Walk(ctx, cfg.Root, wopts, func(c Candidate) error {
			rs, skip := sel(c)
			if skip != SkipNone {
				res.FilesSkipped[skip]++
				return nil
			}
			collect(ScanFile(c.Path, c.Rel, rs, lopts))
			return nil
		})
	}

	var jobs []job
	err := Walk(ctx, cfg.Root, wopts, func(c Candidate) error {
		rs, skip := sel(c)
		if skip != SkipNone {
			res.FilesSkipped[skip]++
			return nil
		}
		jobs = append(jobs, job{cand: c, rules: rs})
		return nil
	})
	if err != nil {
		return err
	}

	results := make([]FileResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ScanFile(jobs[i].cand.Path, jobs[i].cand.Rel, jobs[i].rules, lopts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// reassemble in walk order
	for _, fr := range results {
		collect(fr)
	}
	return nil
}
