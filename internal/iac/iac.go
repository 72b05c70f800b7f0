// Package iac runs checkov over a directory and turns its failed checks
// into findings.
package iac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/emircanakalin/PSA/internal/tools"
	"github.com/emircanakalin/PSA/internal/types"
)

// Options configure Scan.
type Options struct {
	// Framework limits checkov to the listed frameworks (terraform, kubernetes...).
	Framework []string
	// SkipChecks are check ids passed to --skip-check.
	SkipChecks []string
	Runner     tools.Runner
	Logger     *zerolog.Logger
}

// Result of an IaC scan.
type Result struct {
	Findings []types.IaCFinding
	// Ran is false when checkov could not produce a usable report.
	Ran      bool
	Warnings []string
}

// Args returns the checkov command line for dir.
func Args(dir string, opts Options) []string {
	args := []string{"--directory", dir, "--output", "json", "--quiet", "--soft-fail"}
	if len(opts.Framework) > 0 {
		args = append(args, "--framework", strings.Join(opts.Framework, ","))
	}
	if len(opts.SkipChecks) > 0 {
		args = append(args, "--skip-check", strings.Join(opts.SkipChecks, ","))
	}
	return args
}

// Scan runs checkov over dir. A missing directory, a missing tool or
// unparseable output yield no findings and a warning. The returned error is
// only set when ctx is done.
func Scan(ctx context.Context, dir string, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	res := Result{Findings: []types.IaCFinding{}}
	warn := func(ev *zerolog.Event, msg string) {
		ev.Msg(msg)
		res.Warnings = append(res.Warnings, msg)
	}

	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		warn(log.Warn().Str("dir", dir), fmt.Sprintf("IaC scan directory not found: %s", dir))
		return res, nil
	}
	runner := opts.Runner
	if runner == nil {
		runner = tools.NewExecRunner(nil)
	}
	log.Debug().Str("dir", dir).Msg("scanning with checkov")

	out, err := runner.Run(ctx, dir, tools.Checkov, Args(dir, opts)...)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return res, cerr
		}
		if errors.Is(err, tools.ErrToolNotFound) {
			warn(log.Error(), "'checkov' command not found, please ensure checkov is installed")
			return res, nil
		}
		warn(log.Error().Err(err), "checkov could not be run")
		return res, nil
	}

	if len(bytes.TrimSpace(out.Stdout)) == 0 {
		if out.ExitCode != 0 {
			warn(log.Warn().Int("exit_code", out.ExitCode).Str("stderr", strings.TrimSpace(string(out.Stderr))),
				fmt.Sprintf("checkov may have failed (exit code %d)", out.ExitCode))
			return res, nil
		}
		res.Ran = true
		return res, nil
	}

	fs, err := ParseReport(out.Stdout)
	if err != nil {
		warn(log.Error().Err(err), "failed to decode checkov output as JSON")
		return res, nil
	}
	res.Ran = true
	res.Findings = append(res.Findings, fs...)
	return res, nil
}

type checkovReport struct {
	Results *struct {
		FailedChecks []failedCheck `json:"failed_checks"`
	} `json:"results"`
}

type failedCheck struct {
	CheckID       string `json:"check_id"`
	CheckName     string `json:"check_name"`
	FilePath      string `json:"file_path"`
	FileLineRange []int  `json:"file_line_range"`
	Resource      string `json:"resource"`
}

// ParseReport decodes checkov JSON output. checkov prints one object for a
// single framework and a list of objects when several frameworks ran.
// Entries that are not objects are ignored.
func ParseReport(b []byte) ([]types.IaCFinding, error) {
	b = bytes.TrimSpace(b)
	var raws []json.RawMessage
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &raws); err != nil {
			return nil, err
		}
	} else {
		raws = []json.RawMessage{b}
	}
	var out []types.IaCFinding
	for _, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			if !json.Valid(raw) {
				return nil, errors.New("invalid JSON in checkov report")
			}
			continue
		}
		var rep checkovReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			return nil, err
		}
		if rep.Results == nil {
			continue
		}
		for _, c := range rep.Results.FailedChecks {
			f := types.IaCFinding{
				CheckID:   c.CheckID,
				CheckName: c.CheckName,
				FilePath:  c.FilePath,
				Resource:  c.Resource,
			}
			if len(c.FileLineRange) > 0 {
				f.StartLine = c.FileLineRange[0]
			}
			if len(c.FileLineRange) > 1 {
				f.EndLine = c.FileLineRange[1]
			}
			out = append(out, f)
		}
	}
	return out, nil
}
