package pathsearch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0700))
}

func TestLookPathExcludingSkipsSelf(t *testing.T) {
	root := t.TempDir()
	self := filepath.Join(root, "bin", "loggy")
	writeExecutable(t, self)
	self, err := filepath.EvalSymlinks(self)
	require.NoError(t, err)

	aliasDir := filepath.Join(root, "alias")
	require.NoError(t, os.MkdirAll(aliasDir, 0700))
	require.NoError(t, os.Symlink(self, filepath.Join(aliasDir, "make")))

	realMake := filepath.Join(root, "usr", "make")
	writeExecutable(t, realMake)

	pathList := aliasDir + string(os.PathListSeparator) + filepath.Dir(realMake)
	got, err := LookPathExcluding("make", pathList, self)
	require.NoError(t, err)
	assert.Equal(t, realMake, got)
}

func TestLookPathExcludingSkipsNonExecutables(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a")
	second := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(first, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(first, "tool"), []byte("data"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(first, "dir-tool"), 0700))
	writeExecutable(t, filepath.Join(second, "tool"))

	pathList := first + string(os.PathListSeparator) + second
	got, err := LookPathExcluding("tool", pathList, "/nonexistent/loggy")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "tool"), got)
}

func TestLookPathExcludingNotFound(t *testing.T) {
	_, err := LookPathExcluding("definitely-not-here", t.TempDir(), "/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = LookPathExcluding("", t.TempDir(), "/x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLookPathExcludingExplicitPath(t *testing.T) {
	root := t.TempDir()
	script := filepath.Join(root, "run.sh")
	writeExecutable(t, script)

	got, err := LookPathExcluding(script, "", "/x")
	require.NoError(t, err)
	assert.Equal(t, script, got)

	_, err = LookPathExcluding(filepath.Join(root, "missing"), root, "/x")
	assert.True(t, errors.Is(err, ErrNotFound), "missing explicit path is not searched")
}

func TestLookPathExcludingExplicitAliasSearchesPath(t *testing.T) {
	root := t.TempDir()
	self := filepath.Join(root, "bin", "loggy")
	writeExecutable(t, self)
	self, err := filepath.EvalSymlinks(self)
	require.NoError(t, err)

	alias := filepath.Join(root, "alias", "make")
	require.NoError(t, os.MkdirAll(filepath.Dir(alias), 0700))
	require.NoError(t, os.Symlink(self, alias))
	realMake := filepath.Join(root, "usr", "make")
	writeExecutable(t, realMake)

	got, err := LookPathExcluding(alias, filepath.Dir(realMake), self)
	require.NoError(t, err)
	assert.Equal(t, realMake, got)

	_, err = LookPathExcluding(alias, filepath.Dir(alias), self)
	assert.True(t, errors.Is(err, ErrNotFound))
}
