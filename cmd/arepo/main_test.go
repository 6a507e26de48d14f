package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-maldridge/arepo/pkg/registry"
	"github.com/the-maldridge/arepo/pkg/types"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	return writeConfigWith(t, "memory")
}

func writeConfigWith(t *testing.T, store string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arepo.json")
	cfg := `{
		// everything below the temp dir
		"Root": "` + filepath.Join(dir, "root") + `",
		"Architectures": ["x86_64"],
		"Storage": "` + store + `",
		"Triggers": [],
		"LogLevel": "OFF",
	}`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestUsage(t *testing.T) {
	code, err := run(context.Background(), nil, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, 2, code)

	code, err = run(context.Background(), []string{"-c", writeConfig(t), "frobnicate"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, 2, code)

	code, err = run(context.Background(), []string{"-c", filepath.Join(t.TempDir(), "missing.json"), "status"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, 2, code)
}

func TestUpdateNothingToDo(t *testing.T) {
	cfg := writeConfig(t)
	out := &bytes.Buffer{}

	code, err := run(context.Background(), []string{"-c", cfg, "update", "--dry-run"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, out.String())

	code, err = run(context.Background(), []string{"-c", cfg, "update", "--dry-run", "-e"}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	code, err = run(context.Background(), []string{"-c", cfg, "update", "--exit-code"}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestStatusLocal(t *testing.T) {
	cfg := writeConfig(t)
	out := &bytes.Buffer{}

	code, err := run(context.Background(), []string{"-c", cfg, "status"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "service: unknown")
	assert.Contains(t, out.String(), "BASE")

	code, err = run(context.Background(), []string{"-c", cfg, "status", "--status", "bogus"}, out)
	assert.Error(t, err)
	assert.Equal(t, 2, code)
}

func TestSelfStatusPersists(t *testing.T) {
	cfg := writeConfigWith(t, "sqlite")

	code, err := run(context.Background(), []string{"-c", cfg, "status-update", "-s", "failed"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out := &bytes.Buffer{}
	code, err = run(context.Background(), []string{"-c", cfg, "status"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "service: failed")

	// an update run records its own outcome
	code, err = run(context.Background(), []string{"-c", cfg, "update"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out.Reset()
	_, err = run(context.Background(), []string{"-c", cfg, "status"}, out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "service: success")
}

func TestStatusRemote(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	require.NoError(t, reg.Add(types.Package{Base: "foo", Version: "1.0-1"}, types.StatusFailed))
	require.NoError(t, reg.Add(types.Package{Base: "bar", Version: "2.0-1"}, types.StatusSuccess))
	srv := httptest.NewServer(reg.HTTPEntry())
	defer srv.Close()
	cfg := writeConfig(t)

	out := &bytes.Buffer{}
	code, err := run(context.Background(), []string{"-c", cfg, "status", "--remote", srv.URL, "--status", "failed"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "foo")
	assert.NotContains(t, out.String(), "bar")

	code, err = run(context.Background(), []string{"-c", cfg, "status-update", "--remote", srv.URL, "-s", "pending", "foo"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	e, err := reg.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, e.Status.Status)

	code, err = run(context.Background(), []string{"-c", cfg, "status-update", "--remote", srv.URL, "--remove", "bar"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	_, err = reg.Get("bar")
	assert.ErrorIs(t, err, registry.ErrUnknownPackage)
}

func TestRemoveUnknown(t *testing.T) {
	out := &bytes.Buffer{}
	code, err := run(context.Background(), []string{"-c", writeConfig(t), "remove", "nope"}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, out.String())
}

func TestParseSource(t *testing.T) {
	src, err := parseSource("aur")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAUR, src)

	_, err = parseSource("archive")
	assert.Error(t, err)
}

func TestSelectEntries(t *testing.T) {
	entries := []registry.Entry{
		{Package: types.Package{Base: "c"}, Status: types.BuildStatus{Status: types.StatusFailed}},
		{Package: types.Package{Base: "a"}, Status: types.BuildStatus{Status: types.StatusSuccess}},
		{Package: types.Package{Base: "b"}, Status: types.BuildStatus{Status: types.StatusFailed}},
	}
	got := selectEntries(entries, nil, types.StatusFailed)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Package.Base)
	assert.Equal(t, "c", got[1].Package.Base)

	got = selectEntries(entries, []string{"a"}, "")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Package.Base)
}
