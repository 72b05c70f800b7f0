// Package config loads the PSA YAML configuration (rule lists, license
// allowlist and scanner options) and resolves where it lives for a given
// repository. CLI code maps the result into engine and pipeline settings.
package config
