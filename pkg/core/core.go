package core

import (
	"context"

	"github.com/emircanakalin/PSA/internal/engine"
	"github.com/emircanakalin/PSA/internal/rules"
	"github.com/emircanakalin/PSA/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type Config = engine.Config
type Result = engine.Result
type Finding = types.Finding
type Check = types.Check

// ScanSensitiveData runs every pattern in cfg.Patterns against every
// non-excluded file under cfg.Root and returns the findings in walk order.
func ScanSensitiveData(ctx context.Context, cfg Config) ([]Finding, error) {
	res, err := engine.ScanSensitiveData(ctx, cfg)
	return res.Findings, err
}

// ScanDangerousFunctions matches the per-language function names in
// cfg.Functions as whole words against files of that language.
func ScanDangerousFunctions(ctx context.Context, cfg Config) ([]Finding, error) {
	res, err := engine.ScanDangerousFunctions(ctx, cfg)
	return res.Findings, err
}

// ScanWithStats is ScanSensitiveData or ScanDangerousFunctions, depending on
// check, returning the full result with file counts and invalid rules.
func ScanWithStats(ctx context.Context, cfg Config, check Check) (Result, error) {
	if check == types.CheckDangerousFunction {
		return engine.ScanDangerousFunctions(ctx, cfg)
	}
	return engine.ScanSensitiveData(ctx, cfg)
}

// Languages returns the built-in extension to language mapping used to route
// dangerous-function rules.
func Languages() map[string]string {
	out := map[string]string{}
	for ext, l := range rules.DefaultLanguageMap() {
		out[ext] = string(l)
	}
	return out
}
