package upstream

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"k8s.io/klog/v2"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
	"github.com/unidata-tools/udunits-publish-tools/pkg/conventions"
	"github.com/unidata-tools/udunits-publish-tools/pkg/gittools"
)

// Source discovers tagged releases and provides access to their trees.
type Source interface {
	// Latest returns the newest tagged release upstream.
	Latest(ctx context.Context) (*api.Release, error)
	// Checkout materializes the release tree and returns its filesystem.
	Checkout(ctx context.Context, release *api.Release) (billy.Filesystem, error)
}

// ReleaseSource reads releases from a git repository, either through an
// on-disk clone cache or, when cache is nil, a fresh in-memory clone per
// call.
type ReleaseSource struct {
	gitURL string
	cache  *gittools.RepoCache

	repo *git.Repository
}

func NewReleaseSource(gitURL string, cache *gittools.RepoCache) *ReleaseSource {
	return &ReleaseSource{
		gitURL: gitURL,
		cache:  cache,
	}
}

func (s *ReleaseSource) open(ctx context.Context) (*git.Repository, error) {
	if s.repo != nil {
		return s.repo, nil
	}

	var repo *git.Repository
	var err error
	if s.cache != nil {
		repo, err = s.cache.OpenOrClone(ctx, s.gitURL)
	} else {
		klog.V(4).Infof("Cloning repository %q into memory.", s.gitURL)
		repo, err = git.CloneContext(ctx, memory.NewStorage(), memfs.New(), &git.CloneOptions{
			URL:        s.gitURL,
			NoCheckout: true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("can't open repository %q: %w", s.gitURL, err)
	}

	s.repo = repo

	return repo, nil
}

func (s *ReleaseSource) Latest(ctx context.Context) (*api.Release, error) {
	repo, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	err = gittools.FetchTags(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("can't fetch tags from %q: %w", s.gitURL, err)
	}

	tags, err := gittools.TagNames(repo)
	if err != nil {
		return nil, err
	}
	klog.V(5).Infof("Repository %q has %d tags.", s.gitURL, len(tags))

	tag, err := conventions.LatestTag(tags)
	if err != nil {
		return nil, err
	}

	version, err := conventions.VersionFromTag(tag)
	if err != nil {
		return nil, err
	}

	hash, err := gittools.TagCommit(repo, tag)
	if err != nil {
		return nil, err
	}

	klog.V(4).Infof("Latest release tag of %q is %q (%s).", s.gitURL, tag, hash)

	return &api.Release{
		Tag:     tag,
		Version: version,
		Hash:    hash.String(),
	}, nil
}

func (s *ReleaseSource) Checkout(ctx context.Context, release *api.Release) (billy.Filesystem, error) {
	repo, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	w, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	err = w.Checkout(&git.CheckoutOptions{
		Hash:  gitplumbing.NewHash(release.Hash),
		Force: true,
	})
	if err != nil {
		return nil, fmt.Errorf("can't checkout release %q at %q: %w", release.Tag, release.Hash, err)
	}

	klog.V(4).Infof("Checked out release %q at %q.", release.Tag, release.Hash)

	return w.Filesystem, nil
}
