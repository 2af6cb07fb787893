package gittools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"
	"k8s.io/klog/v2"
)

// RepoCache keeps clones on disk so repeated release polls only pay for a
// fetch, not a full clone.
type RepoCache struct {
	root string
}

func NewRepoCache(root string) *RepoCache {
	return &RepoCache{
		root: root,
	}
}

func (rc *RepoCache) OpenOrClone(ctx context.Context, repoURL string) (*git.Repository, error) {
	dir := base64.StdEncoding.EncodeToString([]byte(repoURL))

	p := filepath.Join(rc.root, dir)

	repo, err := git.PlainOpenWithOptions(p, &git.PlainOpenOptions{DetectDotGit: false})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		klog.V(4).Infof("Repository %q at path %q doesn't exist yet.", repoURL, p)
	} else if err != nil {
		return nil, err
	} else {
		return repo, nil
	}

	klog.V(3).Infof("Cloning repository %q...", repoURL)
	repo, err = git.PlainCloneContext(ctx, p, false, &git.CloneOptions{
		URL:        repoURL,
		NoCheckout: true,
		/*
				go-git fails fetching correctly if these are set but it would make it faster.
				SingleBranch: false,
			 	Depth:      1,
		*/
	})
	if err != nil {
		return nil, err
	}
	klog.V(3).Infof("Cloning repository %q complete.", repoURL)

	return repo, nil
}

// FetchTags updates the repository with all upstream tags. An already
// up-to-date repository is not an error.
func FetchTags(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}

	return nil
}

// TagNames lists the short names of all tags in the repository.
func TagNames(repo *git.Repository) ([]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var names []string
	for {
		ref, err := iter.Next()
		if err != nil {
			break
		}
		names = append(names, ref.Name().Short())
	}

	return names, nil
}

// TagCommit resolves a tag name to the commit it points at, following
// annotated tags.
func TagCommit(repo *git.Repository, name string) (gitplumbing.Hash, error) {
	ref, err := repo.Tag(name)
	if err != nil {
		return gitplumbing.ZeroHash, fmt.Errorf("can't resolve tag %q: %w", name, err)
	}

	tagObject, err := repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := tagObject.Commit()
		if err != nil {
			return gitplumbing.ZeroHash, fmt.Errorf("can't resolve annotated tag %q: %w", name, err)
		}
		return commit.Hash, nil

	case errors.Is(err, gitplumbing.ErrObjectNotFound):
		// Lightweight tag, the ref points directly at the commit.
		return ref.Hash(), nil

	default:
		return gitplumbing.ZeroHash, err
	}
}
