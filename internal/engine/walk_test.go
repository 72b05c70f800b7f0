package engine

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/emircanakalin/PSA/internal/ignore"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func walkRel(t *testing.T, root string, opts WalkOptions) []string {
	t.Helper()
	var got []string
	err := Walk(context.Background(), root, opts, func(c Candidate) error {
		got = append(got, c.Rel)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestWalk_PrunesExcludedDirsButKeepsSameNameSibling(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"node_modules/config.js":      "x",
		"node_modules/deep/config.js": "x",
		"src/config.js":               "x",
		"src/vendor/config.js":        "x",
		"src/vendorish/config.js":     "x",
		"app.css":                     "x",
		"app.min.js":                  "x",
		"app.js":                      "x",
		"logo.PNG":                    "x",
	})
	got := walkRel(t, dir, WalkOptions{Policy: DefaultSensitiveExclusions()})
	want := []string{"app.js", "logo.PNG", "src/config.js", "src/vendorish/config.js"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestWalk_FunctionPolicyHasNoSuffixList(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"style.css":    "x",
		".venv/lib.py": "x",
		"build/out.py": "x",
	})
	got := walkRel(t, dir, WalkOptions{Policy: DefaultFunctionExclusions()})
	want := []string{".venv/lib.py", "style.css"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestWalk_MissingOrFileRootYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	if got := walkRel(t, filepath.Join(dir, "nope"), WalkOptions{}); len(got) != 0 {
		t.Fatalf("expected nothing, got %v", got)
	}
	f := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := walkRel(t, f, WalkOptions{}); len(got) != 0 {
		t.Fatalf("expected nothing for file root, got %v", got)
	}
}

func TestWalk_SymlinkedRootIsFollowed(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "real")
	writeTree(t, target, map[string]string{
		"keys.env":       "x",
		"sub/app.py":     "x",
		"node_modules/m": "x",
	})
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	want := walkRel(t, target, WalkOptions{Policy: DefaultSensitiveExclusions()})
	got := walkRel(t, link, WalkOptions{Policy: DefaultSensitiveExclusions()})
	if !reflect.DeepEqual(got, want) || len(got) != 2 {
		t.Fatalf("symlinked root mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestWalk_WithIncludeExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":    "hello",
		"b.go":     "package main\n",
		"c.md":     "doc",
		"sub/d.go": "package sub\n",
	})

	got := walkRel(t, dir, WalkOptions{Includes: []string{"**/*.go"}})
	if !reflect.DeepEqual(got, []string{"b.go", "sub/d.go"}) {
		t.Fatalf("include globs failed, got %v", got)
	}

	got = walkRel(t, dir, WalkOptions{Excludes: []string{"**/*.md"}})
	for _, p := range got {
		if p == "c.md" {
			t.Fatalf("exclude globs failed, saw %s", p)
		}
	}
}

func TestWalk_IgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		ignore.FileName:    "fixtures/\n*.secret\n",
		"fixtures/key.txt": "x",
		"prod.secret":      "x",
		"main.py":          "x",
	})
	got := walkRel(t, dir, WalkOptions{Ignore: ignore.LoadRoot(dir)})
	want := []string{ignore.FileName, "main.py"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestWalk_StopsOnCallbackErrorAndCancel(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "x", "b.txt": "x"})

	stop := os.ErrClosed
	n := 0
	err := Walk(context.Background(), dir, WalkOptions{}, func(Candidate) error {
		n++
		return stop
	})
	if err != stop || n != 1 {
		t.Fatalf("expected stop after first file, got n=%d err=%v", n, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Walk(ctx, dir, WalkOptions{}, func(Candidate) error { return nil }); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAllowedByGlobs(t *testing.T) {
	cases := []struct {
		rel      string
		inc, exc []string
		want     bool
	}{
		{"a/b/c.go", nil, nil, true},
		{"a/b/c.go", []string{"*.go"}, nil, true},
		{"a/b/c.go", []string{"a/**/*.go"}, nil, true},
		{"a/b/c.go", []string{"*.py"}, nil, false},
		{"a/b/c.go", nil, []string{"**/b/**"}, false},
		{"a/b/c.go", []string{"*.go"}, []string{"c.go"}, false},
	}
	for _, tc := range cases {
		if got := allowedByGlobs(tc.rel, tc.inc, tc.exc); got != tc.want {
			t.Errorf("allowedByGlobs(%q, %v, %v) = %v, want %v", tc.rel, tc.inc, tc.exc, got, tc.want)
		}
	}
}

func TestParseGlobList(t *testing.T) {
	if got := ParseGlobList(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	got := ParseGlobList(" **/*.go, ,*.py ")
	if !reflect.DeepEqual(got, []string{"**/*.go", "*.py"}) {
		t.Fatalf("got %v", got)
	}
}

func TestExclusionPolicy_With(t *testing.T) {
	p := DefaultFunctionExclusions().With([]string{"third_party"}, []string{"_test.go"})
	if !p.ExcludesDir("third_party") || !p.ExcludesDir(".git") {
		t.Fatalf("dirs not merged: %v", p.Dirs)
	}
	if !p.ExcludesFile("x_test.go") || p.ExcludesFile("x.go") {
		t.Fatalf("suffixes not merged: %v", p.Suffixes)
	}
	if DefaultFunctionExclusions().ExcludesDir("third_party") {
		t.Fatal("With mutated the receiver")
	}
}
