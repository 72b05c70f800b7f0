package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/emircanakalin/PSA/internal/pipeline"
	"github.com/emircanakalin/PSA/internal/types"
)

// PrintOptions tune human-readable output.
type PrintOptions struct {
	NoColor bool
	// Context prints the matching line under each dangerous-function finding.
	Context bool
	// Footer prints duration and file counts after the verdict.
	Footer bool
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	issueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	cleanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type printer struct {
	w    io.Writer
	opts PrintOptions
}

func (p printer) style(s lipgloss.Style, text string) string {
	if p.opts.NoColor {
		return text
	}
	return s.Render(text)
}

// icon returns the emoji prefix, or nothing when color is off.
func (p printer) icon(e string) string {
	if p.opts.NoColor {
		return ""
	}
	return e + " "
}

var checkIcons = map[types.Check]string{
	types.CheckSensitiveData:     "🔍",
	types.CheckLicenses:          "⚖️",
	types.CheckIaC:               "🏗️",
	types.CheckDangerousFunction: "☢️",
}

// PrintBanner writes the run header.
func PrintBanner(w io.Writer, root, configPath string) {
	fmt.Fprintln(w, "=================================================")
	fmt.Fprintln(w, "= Proactive Security and Compliance Assistant   =")
	fmt.Fprintln(w, "=================================================")
	fmt.Fprintf(w, "Scanning Directory: %s\n", root)
	fmt.Fprintf(w, "Using Configuration File: %s\n", configPath)
}

// PrintText writes the sectioned report: one "[n/4]" block per check in run
// order, then the verdict.
func PrintText(w io.Writer, rep pipeline.Report, opts PrintOptions) {
	p := printer{w: w, opts: opts}
	n := len(rep.Checks)
	for i, cr := range rep.Checks {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.style(headingStyle, fmt.Sprintf("[%d/%d] %sStarting %s...", i+1, n, p.icon(checkIcons[cr.Check]), cr.Check.Title())))
		if !cr.Enabled {
			fmt.Fprintln(w, p.style(dimStyle, "  - Skipped (disabled in configuration)."))
			continue
		}
		p.printCheck(cr, rep.Failing(cr.Check))
		p.printWarnings(cr)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "-------------------")
	fmt.Fprintln(w, "Scan complete.")
	fmt.Fprintln(w)
	if rep.Failed() {
		fmt.Fprintln(w, p.style(issueStyle, p.icon("❌")+"Security or compliance issues were detected. Failing the build."))
	} else {
		fmt.Fprintln(w, p.style(cleanStyle, p.icon("✅")+"No critical issues found. Build successful."))
	}
	if opts.Footer {
		p.footer(rep)
	}
}

func (p printer) printCheck(cr pipeline.CheckResult, failing bool) {
	w := p.w
	if cr.Count() == 0 {
		fmt.Fprintln(w, p.style(cleanStyle, "  "+p.icon("✅")+cleanMessage(cr.Check)))
		return
	}
	switch cr.Check {
	case types.CheckSensitiveData:
		fmt.Fprintln(w, p.style(issueStyle, "  "+p.icon("🚨")+"SENSITIVE DATA FINDINGS:"))
		for _, f := range cr.Findings {
			fmt.Fprintf(w, "    - File: %s:%d | Rule: %s\n", f.Path, f.Line, f.Rule)
		}
	case types.CheckLicenses:
		fmt.Fprintln(w, p.style(issueStyle, "  "+p.icon("🚫")+"LICENSE COMPLIANCE ISSUES:"))
		for _, l := range cr.Licenses {
			fmt.Fprintf(w, "    - Package: %s | License: %s (Not in allowlist)\n", l.Package, l.License)
		}
	case types.CheckIaC:
		fmt.Fprintln(w, p.style(issueStyle, "  "+p.icon("🏗️")+"IAC SECURITY ISSUES:"))
		for _, f := range cr.IaC {
			line := "N/A"
			if f.StartLine > 0 {
				line = strconv.Itoa(f.StartLine)
			}
			fmt.Fprintf(w, "    - File: %s:%s\n", f.FilePath, line)
			fmt.Fprintf(w, "      Resource: %s\n", f.Resource)
			fmt.Fprintf(w, "      Rule: %s (%s)\n", f.CheckID, f.CheckName)
		}
	case types.CheckDangerousFunction:
		head := "DANGEROUS FUNCTION USAGE WARNINGS (does not fail build):"
		if failing {
			head = "DANGEROUS FUNCTION USAGE:"
		}
		fmt.Fprintln(w, p.style(warnStyle, "  "+p.icon("⚠️")+head))
		fmt.Fprintln(w, "    The following uses may pose a security risk and require manual review:")
		for _, f := range cr.Findings {
			fmt.Fprintf(w, "    - File: %s:%d | Function: `%s`\n", f.Path, f.Line, f.Rule)
			if p.opts.Context && f.Snippet != "" {
				snip := f.Snippet
				if !p.opts.NoColor {
					snip = HighlightLine(snip, f.Path)
				}
				fmt.Fprintf(w, "        %s\n", snip)
			}
		}
	}
}

// printWarnings lists conditions that limited a check, such as files over
// the size limit or a missing external tool.
func (p printer) printWarnings(cr pipeline.CheckResult) {
	for _, msg := range cr.Warnings {
		fmt.Fprintln(p.w, p.style(warnStyle, "  "+p.icon("⚠️")+"Warning: "+msg))
	}
}

func cleanMessage(c types.Check) string {
	switch c {
	case types.CheckSensitiveData:
		return "Sensitive data scan clean."
	case types.CheckLicenses:
		return "License compliance scan clean."
	case types.CheckIaC:
		return "IaC security scan clean."
	default:
		return "Dangerous function scan clean."
	}
}

func (p printer) footer(rep pipeline.Report) {
	files := 0
	for _, cr := range rep.Checks {
		if cr.Check == types.CheckSensitiveData {
			files = cr.FilesScanned
		}
	}
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "Findings: %d\n", rep.Total())
	if rep.Duration > 0 {
		fmt.Fprintf(p.w, "Scan duration: %.2fs\n", rep.Duration.Seconds())
	}
	if files > 0 {
		fmt.Fprintf(p.w, "Files scanned: %d\n", files)
	}
}

// Row is one flattened finding for tabular output.
type Row struct {
	Check    types.Check
	Location string
	Rule     string
	Detail   string
	Failing  bool
}

// Rows flattens every finding of rep in check order.
func Rows(rep pipeline.Report) []Row {
	var rows []Row
	for _, cr := range rep.Checks {
		failing := rep.Failing(cr.Check)
		for _, f := range cr.Findings {
			rows = append(rows, Row{Check: cr.Check, Location: fmt.Sprintf("%s:%d", f.Path, f.Line), Rule: f.Rule, Detail: f.Snippet, Failing: failing})
		}
		for _, l := range cr.Licenses {
			loc := l.Package
			if l.Version != "" {
				loc += "@" + l.Version
			}
			rows = append(rows, Row{Check: cr.Check, Location: loc, Rule: l.Ecosystem, Detail: l.License, Failing: failing})
		}
		for _, f := range cr.IaC {
			loc := f.FilePath
			if f.StartLine > 0 {
				loc += ":" + strconv.Itoa(f.StartLine)
			}
			rows = append(rows, Row{Check: cr.Check, Location: loc, Rule: f.CheckID, Detail: f.Resource, Failing: failing})
		}
	}
	return rows
}

// PrintTable writes all findings as a bordered table followed by the
// verdict.
func PrintTable(w io.Writer, rep pipeline.Report, opts PrintOptions) error {
	p := printer{w: w, opts: opts}
	rows := Rows(rep)
	if len(rows) == 0 {
		fmt.Fprintln(w, p.icon("✅")+"No issues found")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Level", "Check", "Location", "Rule", "Detail")
		for _, r := range rows {
			level := "error"
			if !r.Failing {
				level = "warning"
			}
			if err := table.Append([]string{level, string(r.Check), r.Location, r.Rule, truncate(r.Detail, 60)}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	for _, cr := range rep.Checks {
		for _, msg := range cr.Warnings {
			fmt.Fprintf(w, "%s: %s\n", p.style(warnStyle, "Warning ("+string(cr.Check)+")"), msg)
		}
	}
	if rep.Failed() {
		fmt.Fprintln(w, p.style(issueStyle, "Result: FAIL"))
	} else {
		fmt.Fprintln(w, p.style(cleanStyle, "Result: PASS"))
	}
	if opts.Footer {
		p.footer(rep)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
