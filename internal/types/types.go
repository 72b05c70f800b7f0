package types

// Check names one of the scanner's checks.
type Check string

const (
	CheckSensitiveData     Check = "sensitive_data"
	CheckLicenses          Check = "licenses"
	CheckIaC               Check = "iac"
	CheckDangerousFunction Check = "dangerous_function"
)

// AllChecks lists the checks in the order a full run executes them.
var AllChecks = []Check{CheckSensitiveData, CheckLicenses, CheckIaC, CheckDangerousFunction}

// Title returns the human heading used for a check in reports.
func (c Check) Title() string {
	switch c {
	case CheckSensitiveData:
		return "Sensitive Data Scan"
	case CheckLicenses:
		return "License Compliance Scan"
	case CheckIaC:
		return "IaC Security Scan"
	case CheckDangerousFunction:
		return "Dangerous Function Scan"
	default:
		return string(c)
	}
}

// Advisory reports whether findings of this check are informational only and
// never fail a build on their own.
func (c Check) Advisory() bool {
	return c == CheckDangerousFunction
}

// Finding is a single rule match at a path and 1-based line. Path is relative
// to the scan root with forward slashes. Rule carries the original rule text:
// the regex source for sensitive data, the function name for dangerous
// functions. Snippet is only set for dangerous-function findings.
type Finding struct {
	Check   Check  `json:"check"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Rule    string `json:"rule"`
	Snippet string `json:"snippet,omitempty"`
}

// LicenseFinding describes a declared dependency whose resolved license is
// not covered by the allowlist.
type LicenseFinding struct {
	Ecosystem string `json:"ecosystem"`
	Package   string `json:"package"`
	Version   string `json:"version,omitempty"`
	License   string `json:"license"`
}

// IaCFinding is one failed infrastructure-as-code check reported by checkov.
type IaCFinding struct {
	CheckID   string `json:"check_id"`
	CheckName string `json:"check_name"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Resource  string `json:"resource"`
}
