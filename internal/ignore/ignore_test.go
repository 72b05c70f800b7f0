package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIgnoreMatch(t *testing.T) {
	dir := t.TempDir()
	ig := filepath.Join(dir, FileName)
	content := "node_modules/\n*.pem\n# comment\n\nsecret.env\n"
	if err := os.WriteFile(ig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(ig)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"node_modules/pkg/index.js": true,
		"certs/key.pem":             true,
		"secret.env":                true,
		"src/app.go":                false,
	}
	for p, want := range cases {
		if got := m.Match(p); got != want {
			t.Fatalf("Match(%q)=%v want %v", p, got, want)
		}
	}
}

func TestLoadRoot_Missing(t *testing.T) {
	m := LoadRoot(t.TempDir())
	if !m.Empty() {
		t.Fatal("expected empty matcher without ignore file")
	}
	if m.Match("anything.txt") {
		t.Fatal("empty matcher must not ignore anything")
	}
}

func TestFromLines(t *testing.T) {
	m := FromLines("fixtures/", "*.snap")
	if !m.Match("fixtures/keys.py") || !m.Match("a/b/c.snap") || m.Match("src/a.py") {
		t.Fatal("unexpected matcher result")
	}
}

func TestAppend_IdempotentAndCreates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)
	if err := Append(dir, "dist/"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "dist/\n" {
		t.Fatalf("unexpected content: %q", string(b))
	}
	if err := Append(dir, "dist/"); err != nil {
		t.Fatalf("Append second: %v", err)
	}
	b2, _ := os.ReadFile(p)
	if strings.Count(string(b2), "dist/") != 1 {
		t.Fatalf("expected single occurrence, got: %q", string(b2))
	}
}

func TestAppend_AddsMissingNewline(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)
	if err := os.WriteFile(p, []byte("*.log"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Append(dir, "tmp/"); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "*.log\ntmp/\n" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}
