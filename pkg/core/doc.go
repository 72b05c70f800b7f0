// Package core provides a small, stable facade over PSA's pattern engine for
// programs that want the sensitive-data and dangerous-function scans without
// the CLI or the external license and IaC tools.
//
// Example:
//
//	cfg := core.Config{Root: ".", Patterns: []string{`AKIA[0-9A-Z]{16}`}}
//	findings, err := core.ScanSensitiveData(ctx, cfg)
//	if err != nil { /* handle */ }
//	_ = core.MarshalFindings(os.Stdout, findings)
package core
