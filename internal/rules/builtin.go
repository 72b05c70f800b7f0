package rules

// DefaultSensitivePatterns is the starter pattern set written by
// `psa config init`. Scans never fall back to it implicitly.
var DefaultSensitivePatterns = []string{
	`AKIA[0-9A-Z]{16}`,
	`(?i)(aws_secret_access_key|aws_secret_key)["'\s:=]+[A-Za-z0-9/+=]{40}`,
	`g(hp|ho|hu|hs|hr)_[A-Za-z0-9]{36}`,
	`\bglpat-[A-Za-z0-9_-]{20}\b`,
	`xox[abprs]-[A-Za-z0-9-]{10,48}`,
	`sk_live_[A-Za-z0-9]{24,}`,
	`\bAIza[0-9A-Za-z_-]{35}\b`,
	`\bsk-ant-[A-Za-z0-9_-]{30,}\b`,
	`\bnpm_[A-Za-z0-9]{36}\b`,
	`\bSG\.[A-Za-z0-9_-]{16}\.[A-Za-z0-9_-]{32,}\b`,
	`-----BEGIN ((RSA|EC|DSA|OPENSSH|PGP) )?PRIVATE KEY( BLOCK)?-----`,
	`(?i)(password|passwd|secret|api_key|apikey|token)\s*[=:]\s*["'][^"']{8,}["']`,
}

// DefaultDangerousFunctions is the starter function list per language
// written by `psa config init`.
var DefaultDangerousFunctions = map[string][]string{
	string(Python):     {"eval", "exec", "pickle.loads", "os.system", "subprocess.call"},
	string(JavaScript): {"eval", "Function", "setTimeout", "document.write", "innerHTML"},
	string(PHP):        {"eval", "exec", "shell_exec", "system", "passthru", "unserialize"},
	string(Go):         {"exec.Command", "unsafe.Pointer", "template.HTML"},
}

// DefaultAllowedLicenses is the starter license allowlist.
var DefaultAllowedLicenses = []string{
	"MIT", "Apache-2.0", "Apache Software License", "BSD", "ISC", "MPL-2.0", "Python Software Foundation",
}
