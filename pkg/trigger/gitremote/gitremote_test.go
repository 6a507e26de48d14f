package gitremote

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/trigger"
	"github.com/the-maldridge/arepo/pkg/types"
)

// bareRemote returns a bare repository holding one commit with the
// given directories.
func bareRemote(t *testing.T, dirs ...string) string {
	t.Helper()
	seed := t.TempDir()
	repo, err := git.PlainInit(seed, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, d := range append(dirs, ".") {
		require.NoError(t, os.MkdirAll(filepath.Join(seed, d), 0755))
		name := filepath.Join(d, "PKGBUILD")
		require.NoError(t, os.WriteFile(filepath.Join(seed, name), []byte("pkgname="+d+"\n"), 0644))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err = git.PlainClone(bare, true, &git.CloneOptions{URL: seed})
	require.NoError(t, err)
	return bare
}

func TestPushRecipes(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is required for the file transport")
	}
	remote := bareRemote(t, "old")
	paths := types.NewRepositoryPaths(t.TempDir(), "x86_64")
	src := paths.SourcesFor("foo")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "PKGBUILD"), []byte("pkgname=foo\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "foo-1-1-x86_64.pkg.tar.zst"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "src", "main.c"), nil, 0644))

	tr, err := New(hclog.NewNullLogger(), trigger.Options{
		Paths:     paths,
		GitRemote: trigger.GitRemote{URL: remote, Branch: "master"},
	})
	require.NoError(t, err)

	res := new(types.Result)
	res.AddSuccess(types.Package{Base: "foo", Version: "1-1"})
	res.AddRemoved("old")
	require.NoError(t, tr.OnResult(context.Background(), res, nil))

	check := filepath.Join(t.TempDir(), "check")
	_, err = git.PlainClone(check, false, &git.CloneOptions{URL: remote})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(check, "foo", "PKGBUILD"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(check, "foo", "src"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(check, "foo", "foo-1-1-x86_64.pkg.tar.zst"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(check, "old"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(check, "PKGBUILD"))
	assert.NoError(t, err)
}

func TestNothingToPush(t *testing.T) {
	tr, err := New(hclog.NewNullLogger(), trigger.Options{GitRemote: trigger.GitRemote{URL: "/nonexistent"}})
	require.NoError(t, err)
	assert.NoError(t, tr.OnResult(context.Background(), new(types.Result), nil))
}

func TestRequiresURL(t *testing.T) {
	_, err := New(hclog.NewNullLogger(), trigger.Options{})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	trigger.DoCallbacks()
	assert.Contains(t, trigger.List(), "gitremote")
}
