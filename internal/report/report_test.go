package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emircanakalin/PSA/internal/git"
	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/types"
)

func sampleReport() pipeline.Report {
	return pipeline.Report{
		Root:     ".",
		Duration: 1200 * time.Millisecond,
		Checks: []pipeline.CheckResult{
			{Check: types.CheckSensitiveData, Enabled: true, FilesScanned: 10, Findings: []types.Finding{
				{Check: types.CheckSensitiveData, Path: "conf/app.env", Line: 7, Rule: "AKIA[0-9A-Z]{16}"},
			}},
			{Check: types.CheckLicenses, Enabled: true, Licenses: []types.LicenseFinding{
				{Ecosystem: "python", Package: "gplthing", Version: "1.0", License: "GPL-3.0"},
			}},
			{Check: types.CheckIaC, Enabled: true, IaC: []types.IaCFinding{
				{CheckID: "CKV_AWS_20", CheckName: "S3 public read", FilePath: "/main.tf", StartLine: 3, EndLine: 9, Resource: "aws_s3_bucket.data"},
			}},
			{Check: types.CheckDangerousFunction, Enabled: true, Findings: []types.Finding{
				{Check: types.CheckDangerousFunction, Path: "a.py", Line: 3, Rule: "eval", Snippet: "eval(x)"},
			}},
		},
	}
}

func cleanReport() pipeline.Report {
	rep := pipeline.Report{Root: "."}
	for _, c := range types.AllChecks {
		rep.Checks = append(rep.Checks, pipeline.CheckResult{Check: c, Enabled: c != types.CheckIaC})
	}
	return rep
}

func TestPrintText_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, sampleReport(), PrintOptions{NoColor: true, Context: true, Footer: true})
	out := buf.String()
	for _, want := range []string{
		"[1/4] Starting Sensitive Data Scan...",
		"SENSITIVE DATA FINDINGS:",
		"    - File: conf/app.env:7 | Rule: AKIA[0-9A-Z]{16}",
		"[2/4] Starting License Compliance Scan...",
		"    - Package: gplthing | License: GPL-3.0 (Not in allowlist)",
		"[3/4] Starting IaC Security Scan...",
		"    - File: /main.tf:3",
		"      Resource: aws_s3_bucket.data",
		"      Rule: CKV_AWS_20 (S3 public read)",
		"[4/4] Starting Dangerous Function Scan...",
		"DANGEROUS FUNCTION USAGE WARNINGS (does not fail build):",
		"    - File: a.py:3 | Function: `eval`",
		"        eval(x)",
		"Scan complete.",
		"Security or compliance issues were detected. Failing the build.",
		"Files scanned: 10",
		"Scan duration: 1.20s",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "✅")
}

func TestPrintText_Clean(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, cleanReport(), PrintOptions{NoColor: true})
	out := buf.String()
	assert.Contains(t, out, "Sensitive data scan clean.")
	assert.Contains(t, out, "License compliance scan clean.")
	assert.Contains(t, out, "Skipped (disabled in configuration)")
	assert.Contains(t, out, "Dangerous function scan clean.")
	assert.Contains(t, out, "No critical issues found. Build successful.")
}

func TestPrintText_AdvisoryOnlyPasses(t *testing.T) {
	rep := cleanReport()
	rep.Checks[3].Findings = []types.Finding{{Check: types.CheckDangerousFunction, Path: "x.js", Line: 1, Rule: "eval"}}
	var buf bytes.Buffer
	PrintText(&buf, rep, PrintOptions{NoColor: true})
	assert.Contains(t, buf.String(), "Build successful.")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "./repo", ".github/security-config.yml")
	assert.Contains(t, buf.String(), "Scanning Directory: ./repo")
	assert.Contains(t, buf.String(), "Using Configuration File: .github/security-config.yml")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, sampleReport(), PrintOptions{NoColor: true}))
	out := buf.String()
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "conf/app.env:7")
	assert.Contains(t, out, "gplthing@1.0")
	assert.Contains(t, out, "/main.tf:3")
	assert.Contains(t, out, "│")
	assert.Contains(t, out, "Result: FAIL")

	buf.Reset()
	require.NoError(t, PrintTable(&buf, cleanReport(), PrintOptions{NoColor: true}))
	assert.Contains(t, buf.String(), "No issues found")
	assert.Contains(t, buf.String(), "Result: PASS")
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport())
	require.Len(t, rows, 4)
	assert.True(t, rows[0].Failing)
	assert.False(t, rows[3].Failing)
	assert.Equal(t, "eval", rows[3].Rule)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))
	var doc struct {
		Failed bool `json:"failed"`
		Total  int  `json:"total"`
		Checks []struct {
			Check    string          `json:"check"`
			Findings []types.Finding `json:"findings"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Failed)
	assert.Equal(t, 4, doc.Total)
	require.Len(t, doc.Checks, 4)
	assert.Equal(t, "sensitive_data", doc.Checks[0].Check)
	assert.Equal(t, 7, doc.Checks[0].Findings[0].Line)
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	md := git.Metadata{RemoteURL: "https://github.com/o/r.git", Commit: "abc", Branch: "main"}
	require.NoError(t, WriteSARIF(&buf, sampleReport(), SARIFOptions{ToolVersion: "1.2.3", Git: md, RunID: "run-1"}))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Version string `json:"version"`
					Rules   []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			AutomationDetails struct {
				GUID string `json:"guid"`
			} `json:"automationDetails"`
			VersionControlProvenance []struct {
				RevisionID string `json:"revisionId"`
			} `json:"versionControlProvenance"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				RuleIndex int    `json:"ruleIndex"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), buf.String())
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)
	assert.Equal(t, "run-1", run.AutomationDetails.GUID)
	require.Len(t, run.VersionControlProvenance, 1)
	assert.Equal(t, "abc", run.VersionControlProvenance[0].RevisionID)
	require.Len(t, run.Results, 4)
	assert.Len(t, run.Tool.Driver.Rules, 4)
	for _, r := range run.Results {
		assert.Equal(t, r.RuleID, run.Tool.Driver.Rules[r.RuleIndex].ID)
	}
	assert.Equal(t, "error", run.Results[0].Level)
	assert.Equal(t, "warning", run.Results[3].Level)
	assert.Equal(t, "main.tf", run.Results[2].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}

func TestWriteSARIF_GeneratesRunID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, cleanReport(), SARIFOptions{}))
	assert.Contains(t, buf.String(), `"guid"`)
	assert.Contains(t, buf.String(), `"results": []`)
	assert.NotContains(t, buf.String(), "versionControlProvenance")
}

func TestCheckWarningsAreReported(t *testing.T) {
	rep := cleanReport()
	warning := "2 file(s) larger than 64 bytes were not scanned (raise max_bytes to include them)"
	rep.Checks[0].Warnings = []string{warning}

	var buf bytes.Buffer
	PrintText(&buf, rep, PrintOptions{NoColor: true})
	assert.Contains(t, buf.String(), "  Warning: "+warning)

	buf.Reset()
	require.NoError(t, PrintTable(&buf, rep, PrintOptions{NoColor: true}))
	assert.Contains(t, buf.String(), "Warning (sensitive_data): "+warning)

	buf.Reset()
	require.NoError(t, WriteSARIF(&buf, rep, SARIFOptions{RunID: "run-1"}))
	var doc struct {
		Runs []struct {
			Invocations []struct {
				ExecutionSuccessful bool `json:"executionSuccessful"`
				Notifications       []struct {
					Level   string `json:"level"`
					Message struct {
						Text string `json:"text"`
					} `json:"message"`
				} `json:"toolExecutionNotifications"`
			} `json:"invocations"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), buf.String())
	require.Len(t, doc.Runs, 1)
	require.Len(t, doc.Runs[0].Invocations, 1)
	inv := doc.Runs[0].Invocations[0]
	assert.True(t, inv.ExecutionSuccessful)
	require.Len(t, inv.Notifications, 1)
	assert.Equal(t, "warning", inv.Notifications[0].Level)
	assert.Equal(t, warning, inv.Notifications[0].Message.Text)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, rep))
	assert.Contains(t, buf.String(), "were not scanned")
}

func TestBaseline_RoundTripAndFilter(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, DefaultBaselineFile)
	rep := sampleReport()
	require.NoError(t, SaveBaseline(p, rep))

	base, err := LoadBaseline(p)
	require.NoError(t, err)
	assert.Len(t, base.Items, 4)

	filtered := FilterNew(rep, base)
	assert.Zero(t, filtered.Total())
	assert.False(t, filtered.Failed())
	assert.Equal(t, 4, rep.Total(), "original report must not be modified")

	moved := sampleReport()
	moved.Checks[0].Findings[0].Line = 42
	moved.Checks[0].Findings = append(moved.Checks[0].Findings, types.Finding{Check: types.CheckSensitiveData, Path: "new.txt", Line: 1, Rule: "x"})
	filtered = FilterNew(moved, base)
	assert.Equal(t, 1, filtered.Total())
	assert.Equal(t, "new.txt", filtered.Checks[0].Findings[0].Path)
}

func TestLoadBaseline_Errors(t *testing.T) {
	_, err := LoadBaseline(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte("{nope"), 0o644))
	_, err = LoadBaseline(p)
	assert.Error(t, err)
}

func TestFingerprintsStable(t *testing.T) {
	a := Fingerprints(sampleReport())
	b := Fingerprints(sampleReport())
	assert.Equal(t, a, b)
	f := types.Finding{Check: types.CheckSensitiveData, Path: "a", Rule: "r"}
	g := f
	g.Check = types.CheckDangerousFunction
	assert.NotEqual(t, FindingKey(f), FindingKey(g))
}

func TestHighlightLine(t *testing.T) {
	assert.Equal(t, "plain", HighlightLine("plain", "file.unknownext"))
	out := HighlightLine("x = eval(y)", "a.py")
	assert.Contains(t, out, "eval")
	assert.True(t, strings.Contains(out, "\x1b["), "expected ANSI escapes, got %q", out)
}
