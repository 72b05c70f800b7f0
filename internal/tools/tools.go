// Package tools locates and runs the external programs the license and IaC
// checks delegate to (pip-licenses, license-checker-js, checkov).
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrToolNotFound is returned when an external program cannot be located.
var ErrToolNotFound = errors.New("tool not found")

// Well-known tool names.
const (
	PipLicenses    = "pip-licenses"
	LicenseChecker = "license-checker-js"
	Checkov        = "checkov"
)

// BinaryManager resolves external programs by name.
type BinaryManager struct {
	custom    map[string]string
	cachePath string
}

// NewBinaryManager creates a manager. custom maps a tool name to an explicit
// path that takes precedence over any lookup.
func NewBinaryManager(custom map[string]string) *BinaryManager {
	homeDir, _ := os.UserHomeDir()
	bm := &BinaryManager{custom: map[string]string{}, cachePath: filepath.Join(homeDir, ".psa", "bin")}
	for k, v := range custom {
		if v != "" {
			bm.custom[k] = v
		}
	}
	return bm
}

// Find locates a tool using the following search order:
// 1. Custom path (if configured)
// 2. $PATH lookup
// 3. ~/.psa/bin/<name>
func (bm *BinaryManager) Find(name string) (string, error) {
	if p, ok := bm.custom[name]; ok {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("custom %s path %s: %w", name, p, ErrToolNotFound)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	if bm.cachePath != "" {
		cached := filepath.Join(bm.cachePath, name)
		if runtime.GOOS == "windows" {
			cached += ".exe"
		}
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
	}
	return "", fmt.Errorf("%s not in PATH: %w", name, ErrToolNotFound)
}

// Output is what a finished tool invocation produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes an external tool in dir. A non-zero exit status is not an
// error: it is reported in Output.ExitCode. Errors mean the tool could not
// be started at all (ErrToolNotFound when it is missing).
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Output, error)
}

// ExecRunner runs tools as subprocesses.
type ExecRunner struct {
	Bins *BinaryManager
}

// NewExecRunner returns a runner resolving tools through bm. A nil bm uses
// a manager with no custom paths.
func NewExecRunner(bm *BinaryManager) *ExecRunner {
	if bm == nil {
		bm = NewBinaryManager(nil)
	}
	return &ExecRunner{Bins: bm}
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Output, error) {
	path, err := r.Bins.Find(name)
	if err != nil {
		return Output{}, err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		return out, fmt.Errorf("%s: %w", name, ErrToolNotFound)
	default:
		return out, fmt.Errorf("run %s: %w", name, err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return out, cerr
	}
	return out, nil
}
