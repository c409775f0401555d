package installer

import (
	"context"

	"github.com/go-git/go-git/v5"
)

// CloneFunc fetches url into dir and returns the checked-out revision.
type CloneFunc func(ctx context.Context, url, dir string) (string, error)

// GitClone does a shallow single-branch clone with go-git.
func GitClone(ctx context.Context, url, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}
