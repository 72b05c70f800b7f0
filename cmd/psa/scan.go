package psa

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emircanakalin/PSA/internal/audit"
	"github.com/emircanakalin/PSA/internal/config"
	"github.com/emircanakalin/PSA/internal/git"
	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/report"
	"github.com/emircanakalin/PSA/internal/types"
	"github.com/emircanakalin/PSA/internal/update"
)

type scanOptions struct {
	path            string
	configPath      string
	json            bool
	sarif           bool
	table           bool
	threads         int
	maxBytes        int64
	include         string
	exclude         string
	checks          string
	baseline        string
	noBaseline      bool
	context         bool
	noIgnoreFile    bool
	failOnDangerous bool
	progress        bool
	auditLog        bool
}

func newScanCmd(ro *rootOptions) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run all checks against a repository",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindRepoFlags(ro, cmd)
			_ = ro.env.BindPFlag("threads", cmd.Flags().Lookup("threads"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, ro, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.path, "path", "p", ".", "repository to scan (env INPUT_REPO_PATH)")
	f.StringVar(&o.configPath, "config", "", "configuration file (env INPUT_CONFIG_PATH, default .github/security-config.yml)")
	f.BoolVar(&o.json, "json", false, "emit the report as JSON")
	f.BoolVar(&o.sarif, "sarif", false, "emit the report as SARIF 2.1.0")
	f.BoolVar(&o.table, "table", false, "emit findings as a table")
	f.IntVar(&o.threads, "threads", 0, "parallel file scans (0 = config or GOMAXPROCS)")
	f.Int64Var(&o.maxBytes, "max-bytes", 0, "skip files larger than this (0 = config or 10 MiB)")
	f.StringVar(&o.include, "include", "", "comma-separated include globs")
	f.StringVar(&o.exclude, "exclude", "", "comma-separated exclude globs")
	f.StringVar(&o.checks, "checks", "", "comma-separated checks to run: sensitive_data,licenses,iac,dangerous_function")
	f.StringVar(&o.baseline, "baseline", "", "baseline file of accepted findings (default <path>/"+report.DefaultBaselineFile+" when present)")
	f.BoolVar(&o.noBaseline, "no-baseline", false, "report every finding even if baselined")
	f.BoolVar(&o.context, "context", false, "print the matching line under dangerous-function findings")
	f.BoolVar(&o.noIgnoreFile, "no-ignore-file", false, "do not apply the .psaignore file")
	f.BoolVar(&o.failOnDangerous, "fail-on-dangerous", false, "fail the run on dangerous-function findings (env INPUT_FAIL_ON_DANGEROUS)")
	f.BoolVar(&o.progress, "progress", false, "show file progress on stderr")
	f.BoolVar(&o.auditLog, "audit-log", false, "append a summary of this run to the scan history (see `psa history`)")
	return cmd
}

// bindRepoFlags points the repository settings at cmd's flags so that a
// changed flag wins over INPUT_* and PSA_* variables.
func bindRepoFlags(ro *rootOptions, cmd *cobra.Command) {
	for key, name := range map[string]string{
		"repo_path":         "path",
		"config_path":       "config",
		"fail_on_dangerous": "fail-on-dangerous",
	} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = ro.env.BindPFlag(key, f)
		}
	}
}

// loadSettings resolves the repository root and its configuration. A
// missing configuration file is a warning; a malformed one is an error.
func loadSettings(ro *rootOptions, log *zerolog.Logger) (string, string, config.FileConfig, error) {
	root := ro.env.GetString("repo_path")
	if root == "" {
		root = "."
	}
	fc, cfgPath, err := config.Load(root, ro.env.GetString("config_path"))
	switch {
	case errors.Is(err, config.ErrNoConfig):
		log.Warn().Str("path", cfgPath).Msg("configuration file not found, using default empty settings")
		fc = config.FileConfig{}
	case err != nil:
		return root, cfgPath, fc, fmt.Errorf("could not parse the configuration file: %w", err)
	}
	if g, gerr := config.LoadGlobal(); gerr == nil {
		fc = config.Merge(g, fc)
	} else if !errors.Is(gerr, config.ErrNoConfig) {
		log.Debug().Err(gerr).Msg("global config not loaded")
	}
	return root, cfgPath, fc, nil
}

func runScan(cmd *cobra.Command, ro *rootOptions, o *scanOptions) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	log := ro.logger(stderr)
	if o.json && o.sarif {
		return errors.New("--json and --sarif are mutually exclusive")
	}

	root, cfgPath, fc, err := loadSettings(ro, &log)
	if err != nil {
		return err
	}
	if o.include != "" {
		fc.Include = splitList(o.include)
	}
	if o.exclude != "" {
		fc.Exclude = splitList(o.exclude)
	}
	if o.maxBytes > 0 {
		fc.MaxBytes = int64Ptr(o.maxBytes)
	}
	if o.checks != "" {
		fc.Checks = splitList(o.checks)
		if err := fc.Validate(); err != nil {
			return err
		}
	}

	human := !o.json && !o.sarif
	color := colorEnabled(ro, stdout)
	if human && !o.table {
		report.PrintBanner(stdout, root, cfgPath)
	}

	opts := pipeline.Options{
		Root:            root,
		ConfigPath:      cfgPath,
		Config:          fc,
		Threads:         ro.env.GetInt("threads"),
		UseIgnoreFile:   !o.noIgnoreFile,
		FailOnDangerous: ro.env.GetBool("fail_on_dangerous"),
		Snippets:        true,
		Logger:          &log,
	}
	if o.progress && isTerminal(stderr) {
		opts.Progress = progressPrinter(stderr)
	}
	rep, err := pipeline.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	full := rep
	rep, baselinePath, err := applyBaseline(rep, root, o, &log)
	if err != nil {
		return err
	}
	if o.auditLog {
		al := audit.NewAuditLog(root)
		if err := al.LogScan(audit.CreateScanRecord(full, rep, baselinePath)); err != nil {
			log.Warn().Err(err).Msg("could not write audit log")
		} else {
			log.Debug().Str("path", al.Path()).Msg("scan recorded")
		}
	}

	switch {
	case o.json:
		err = report.WriteJSON(stdout, rep)
	case o.sarif:
		err = report.WriteSARIF(stdout, rep, report.SARIFOptions{ToolVersion: version, Git: git.RepoMetadata(root)})
	case o.table:
		err = report.PrintTable(stdout, rep, report.PrintOptions{NoColor: !color, Footer: true})
	default:
		report.PrintText(stdout, rep, report.PrintOptions{NoColor: !color, Context: o.context, Footer: true})
	}
	if err != nil {
		return err
	}

	if human && !ro.noUpdateCheck && isTerminal(stderr) {
		if latest, newer, _ := update.Check(version, false); newer {
			fmt.Fprintf(stderr, "A new psa release is available: %s (current %s). Run `psa update`.\n", latest, version)
		}
	}
	if rep.Failed() {
		return &ExitError{Code: 1}
	}
	return nil
}

// applyBaseline hides findings accepted in the baseline file and returns
// the path it used, empty when no baseline applied.
func applyBaseline(rep pipeline.Report, root string, o *scanOptions, log *zerolog.Logger) (pipeline.Report, string, error) {
	if o.noBaseline {
		return rep, "", nil
	}
	path := o.baseline
	if path == "" {
		path = filepath.Join(root, report.DefaultBaselineFile)
		if _, err := os.Stat(path); err != nil {
			return rep, "", nil
		}
	}
	base, err := report.LoadBaseline(path)
	if err != nil {
		return rep, "", err
	}
	filtered := report.FilterNew(rep, base)
	if hidden := rep.Total() - filtered.Total(); hidden > 0 {
		log.Info().Int("count", hidden).Str("baseline", path).Msg("baselined findings hidden")
	}
	return filtered, path, nil
}

func progressPrinter(w io.Writer) func(types.Check, int, int) {
	return func(c types.Check, done, total int) {
		fmt.Fprintf(w, "\r%s: %d/%d files", c.Title(), done, total)
		if done >= total {
			fmt.Fprintln(w)
		}
	}
}
