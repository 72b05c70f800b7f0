// Package git reads best-effort repository metadata for report provenance.
package git

import (
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// Metadata identifies the revision a scan ran against. Fields are empty
// when unknown.
type Metadata struct {
	Repo   string `json:"repo,omitempty"`
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	// RemoteURL is the raw origin URL.
	RemoteURL string `json:"remote_url,omitempty"`
}

// Empty reports whether nothing could be determined.
func (m Metadata) Empty() bool {
	return m.Repo == "" && m.Commit == "" && m.Branch == ""
}

// RepoMetadata returns metadata for the repository containing root. Parent
// directories are searched for .git. Failures yield empty fields.
func RepoMetadata(root string) Metadata {
	var md Metadata
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return md
	}
	if head, err := repo.Head(); err == nil {
		md.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			md.Branch = head.Name().Short()
		}
	}
	if rem, err := repo.Remote("origin"); err == nil {
		if urls := rem.Config().URLs; len(urls) > 0 {
			md.RemoteURL = urls[0]
			md.Repo = ShortRepo(urls[0])
		}
	}
	return md
}

// ShortRepo trims a remote URL to owner/name when possible.
func ShortRepo(url string) string {
	s := strings.TrimSuffix(strings.TrimSpace(url), ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[j+1:]
		}
		return s
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
