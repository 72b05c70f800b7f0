package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoMetadata(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	hash, err := wt.Commit("init", &gogit.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:emircanakalin/PSA.git"}})
	require.NoError(t, err)

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	md := RepoMetadata(sub)
	assert.Equal(t, hash.String(), md.Commit)
	assert.NotEmpty(t, md.Branch)
	assert.Equal(t, "emircanakalin/PSA", md.Repo)
	assert.False(t, md.Empty())
}

func TestRepoMetadata_NotARepo(t *testing.T) {
	md := RepoMetadata(t.TempDir())
	assert.True(t, md.Empty())
}

func TestShortRepo(t *testing.T) {
	cases := map[string]string{
		"git@github.com:org/name.git":      "org/name",
		"https://github.com/org/name.git":  "org/name",
		"https://gitlab.example.com/a/b/c": "a/b/c",
		"":                                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ShortRepo(in), in)
	}
}
