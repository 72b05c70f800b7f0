package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/emircanakalin/PSA/internal/ignore"
)

// WalkOptions select which files Walk yields.
type WalkOptions struct {
	Policy   ExclusionPolicy
	Ignore   ignore.Matcher
	Includes []string
	Excludes []string
}

// Candidate is a file yielded by Walk.
type Candidate struct {
	// Path is the filesystem path (root joined with Rel).
	Path string
	// Rel is relative to the walk root, slash separated.
	Rel  string
	Name string
	Size int64
}

// Walk visits every regular file under root in lexical depth-first order and
// calls fn for each one that survives the exclusion policy, the ignore file
// and the globs. Excluded directories are pruned before descent. A missing
// or non-directory root yields nothing and no error. A symlinked root is
// resolved first and Rel is computed against the resolved directory.
// Unreadable entries are skipped. fn may return an error to stop the walk;
// that error is returned.
func Walk(ctx context.Context, root string, opts WalkOptions, fn func(Candidate) error) error {
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil
		}
		if p == root {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()
		if d.IsDir() {
			if opts.Policy.ExcludesDir(name) || opts.Ignore.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		info, ok := regularFile(p, d)
		if !ok {
			return nil
		}
		if opts.Policy.ExcludesFile(name) {
			return nil
		}
		if opts.Ignore.Match(rel) {
			return nil
		}
		if !allowedByGlobs(rel, opts.Includes, opts.Excludes) {
			return nil
		}
		return fn(Candidate{Path: p, Rel: rel, Name: name, Size: info.Size()})
	})
}

// regularFile resolves d to a regular file, following a symlink that points
// at one. Symlinked directories are never descended.
func regularFile(p string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type().IsRegular() {
		info, err := d.Info()
		if err != nil {
			return nil, false
		}
		return info, true
	}
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		return info, true
	}
	return nil, false
}
