package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	gitPlumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// New creates a new instance of RepoMngr
func New(l hclog.Logger, path, url, branch string) *RepoMngr {
	x := RepoMngr{
		l:      l.Named("git"),
		Path:   path,
		Url:    url,
		Branch: branch,
		Mu:     new(sync.Mutex),
	}
	return &x
}

// IsRepo reports whether path already holds a git checkout.
func IsRepo(path string) bool {
	st, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && st.IsDir()
}

// Bootstrap opens the repository at Path, cloning it from Url first
// if there is nothing there yet.
func (r *RepoMngr) Bootstrap(ctx context.Context) error {
	var err error
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if IsRepo(r.Path) {
		r.repo, err = git.PlainOpen(r.Path)
		if err != nil {
			r.l.Trace("Error running PlainOpen")
			return err
		}
		return r.resolveBranch()
	}

	if r.Url == "" {
		return errors.Errorf("%s is not a git checkout and no remote was provided", r.Path)
	}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0755); err != nil {
		return err
	}
	opts := &git.CloneOptions{URL: r.Url}
	if r.Branch != "" {
		opts.ReferenceName = gitPlumbing.NewBranchReferenceName(r.Branch)
		opts.SingleBranch = true
	}
	r.l.Debug("Cloning repository", "path", r.Path, "url", r.Url, "branch", r.Branch)
	r.repo, err = git.PlainCloneContext(ctx, r.Path, false, opts)
	if err != nil {
		r.l.Trace("Error running PlainClone")
		os.RemoveAll(r.Path)
		return err
	}
	return r.resolveBranch()
}

func (r *RepoMngr) resolveBranch() error {
	if r.Branch != "" {
		return nil
	}
	head, err := r.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		r.Branch = DefaultBranch
		return nil
	}
	r.Branch = head.Name().Short()
	return nil
}

// HasRemote is true when the checkout has an origin to fetch from.
func (r *RepoMngr) HasRemote() bool {
	remotes, err := r.repo.Remotes()
	return err == nil && len(remotes) > 0
}

// RemoteURL returns the first url configured for origin, if any.
func (r *RepoMngr) RemoteURL() string {
	remote, err := r.repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// Get the current HEAD hash
func (r *RepoMngr) At() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		r.l.Trace("Error getting HEAD")
		return "", err
	}
	return head.Hash().String(), nil
}

// Fetch origin
func (r *RepoMngr) Fetch(ctx context.Context) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.l.Debug("Fetching origin for git repository", "path", r.Path)
	err := r.repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Force: true})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		r.l.Trace("Error fetching")
		return err
	}
	return nil
}

// Reset moves the worktree to origin/Branch, discarding local
// changes, and returns the files that changed.
func (r *RepoMngr) Reset() ([]string, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	ref, err := r.repo.Reference(gitPlumbing.NewRemoteReferenceName("origin", r.Branch), true)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving origin/%s", r.Branch)
	}

	oldHead, err := r.repo.Head()
	if err != nil {
		r.l.Trace("Error getting old HEAD")
		return nil, err
	}
	r.l.Debug("Resetting git repository", "path", r.Path,
		"old", oldHead.Hash().String(), "new", ref.Hash().String())

	worktree, err := r.repo.Worktree()
	if err != nil {
		r.l.Trace("Error getting worktree")
		return nil, err
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset}); err != nil {
		return nil, err
	}

	if oldHead.Hash() == ref.Hash() {
		r.l.Trace("Nothing changed in reset")
		return make([]string, 0), nil
	}

	// Diff the two commits
	oldCommit, err := r.repo.CommitObject(oldHead.Hash())
	if err != nil {
		r.l.Trace("Error getting old CommitObject")
		return nil, err
	}
	newCommit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		r.l.Trace("Error getting new CommitObject")
		return nil, err
	}
	diff, err := newCommit.Patch(oldCommit)
	if err != nil {
		r.l.Trace("Error getting patch")
		return nil, err
	}
	diffFileStats := diff.Stats()
	r.l.Debug("Files were changed in reset", "count", strconv.Itoa(len(diffFileStats)))
	changedFiles := make([]string, len(diffFileStats))
	for i := range diffFileStats {
		changedFiles[i] = diffFileStats[i].Name
	}
	return changedFiles, nil
}

// CommitAll stages every change in the worktree, including deletions,
// and commits it.  It reports false when there was nothing to commit.
func (r *RepoMngr) CommitAll(msg, name, email string) (bool, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := worktree.Status()
	if err != nil {
		return false, err
	}
	if status.IsClean() {
		return false, nil
	}
	for path, st := range status {
		switch st.Worktree {
		case git.Unmodified:
			continue
		case git.Deleted:
			_, err = worktree.Remove(path)
		default:
			_, err = worktree.Add(path)
		}
		if err != nil {
			return false, errors.Wrapf(err, "staging %s", path)
		}
	}

	hash, err := worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: name, Email: email, When: time.Now()},
	})
	if err != nil {
		return false, err
	}
	r.l.Debug("Committed changes", "path", r.Path, "commit", hash.String())
	return true, nil
}

// Push sends the local branches to origin.
func (r *RepoMngr) Push(ctx context.Context) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.l.Debug("Pushing to origin", "path", r.Path)
	err := r.repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}
