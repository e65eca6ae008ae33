package git

import (
	git2go "github.com/libgit2/git2go/v34"

	"github.com/NicabarNimble/go-repodocs/internal/urlutils"
)

// fallbackBranch is reported when HEAD cannot be resolved.
const fallbackBranch = "main"

// RepositoryInfo describes a cloned repository.
type RepositoryInfo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
	TotalCommits  int    `json:"total_commits"`
	IsEmpty       bool   `json:"is_empty"`
	URL           string `json:"url"`
}

// FullName returns "owner/name".
func (i RepositoryInfo) FullName() string {
	return i.Owner + "/" + i.Name
}

// describe derives RepositoryInfo. Owner and name come from the original
// URL, not the checkout.
func describe(repo *git2go.Repository, src urlutils.RepositorySource) RepositoryInfo {
	info := RepositoryInfo{
		Owner:         src.Owner,
		Name:          src.Name,
		DefaultBranch: fallbackBranch,
		URL:           src.URL,
	}
	if owner, name, err := urlutils.ParseOwnerName(src.URL); err == nil {
		info.Owner, info.Name = owner, name
	}

	if head, err := repo.Head(); err == nil {
		if branch := head.Shorthand(); branch != "" {
			info.DefaultBranch = branch
		}
		head.Free()
	}

	empty, err := repo.IsEmpty()
	info.IsEmpty = err == nil && empty
	if !info.IsEmpty {
		info.TotalCommits = countCommits(repo)
	}
	return info
}

// countCommits walks all history reachable from HEAD. It returns 0 when
// HEAD is unborn or the walk fails.
func countCommits(repo *git2go.Repository) int {
	walk, err := repo.Walk()
	if err != nil {
		return 0
	}
	defer walk.Free()

	if err := walk.PushHead(); err != nil {
		return 0
	}

	count := 0
	oid := new(git2go.Oid)
	for walk.Next(oid) == nil {
		count++
	}
	return count
}
