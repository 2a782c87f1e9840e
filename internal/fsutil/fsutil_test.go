package fsutil

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestCopyTree_directory(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":      "a",
		"sub/b.txt":  "b",
		"sub/.git":   "gitdir: elsewhere",
		"sub/run.sh": "#!/bin/sh\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(src, "sub", "run.sh"), 0755))
	require.NoError(t, os.Symlink("b.txt", filepath.Join(src, "sub", "link")))

	dst := filepath.Join(t.TempDir(), "out")
	skip := func(rel string, _ fs.DirEntry) bool { return filepath.Base(rel) == ".git" }
	require.NoError(t, CopyTree(context.Background(), src, dst, skip))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	info, err := os.Stat(filepath.Join(dst, "sub", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "sub", "link"))
	require.NoError(t, err)
	assert.Equal(t, "b.txt", link)

	_, err = os.Lstat(filepath.Join(dst, "sub", ".git"))
	assert.True(t, os.IsNotExist(err), ".git should be skipped")
}

func TestCopyTree_singleFile(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"SConstruct": "env = 1\n"})
	dst := filepath.Join(t.TempDir(), "nested", "SConstruct")

	require.NoError(t, CopyTree(context.Background(), filepath.Join(src, "SConstruct"), dst, nil))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "env = 1\n", string(data))
}

func TestCopyTree_overwritesReadOnlyFile(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "new"})
	dst := t.TempDir()
	writeTree(t, dst, map[string]string{"f.txt": "old"})
	require.NoError(t, os.Chmod(filepath.Join(dst, "f.txt"), 0444))

	require.NoError(t, CopyTree(context.Background(), src, dst, nil))
	data, err := os.ReadFile(filepath.Join(dst, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCopyTree_canceled(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a/b.txt": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CopyTree(ctx, src, filepath.Join(t.TempDir(), "out"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDigest_deterministic(t *testing.T) {
	files := map[string]string{"x/1.txt": "one", "x/2.txt": "two", "y.txt": "why"}
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, files)
	writeTree(t, b, files)

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.True(t, strings.HasPrefix(da, "sha256:"))
}

func TestDigest_sensitivity(t *testing.T) {
	base := map[string]string{"x/1.txt": "one", "y.txt": "why"}
	root := t.TempDir()
	writeTree(t, root, base)
	orig, err := Digest(root)
	require.NoError(t, err)

	t.Run("content", func(t *testing.T) {
		r := t.TempDir()
		writeTree(t, r, map[string]string{"x/1.txt": "ONE", "y.txt": "why"})
		d, err := Digest(r)
		require.NoError(t, err)
		assert.NotEqual(t, orig, d)
	})

	t.Run("path", func(t *testing.T) {
		r := t.TempDir()
		writeTree(t, r, map[string]string{"x/one.txt": "one", "y.txt": "why"})
		d, err := Digest(r)
		require.NoError(t, err)
		assert.NotEqual(t, orig, d)
	})

	t.Run("mode", func(t *testing.T) {
		r := t.TempDir()
		writeTree(t, r, base)
		require.NoError(t, os.Chmod(filepath.Join(r, "y.txt"), 0755))
		d, err := Digest(r)
		require.NoError(t, err)
		assert.NotEqual(t, orig, d)
	})
}

func TestExistsAndRemoveAll(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ro/f.txt": "x"})
	require.NoError(t, os.Chmod(filepath.Join(root, "ro"), 0555))

	ok, err := Exists(filepath.Join(root, "ro", "f.txt"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, RemoveAll(filepath.Join(root, "ro")))
	ok, err = Exists(filepath.Join(root, "ro"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, RemoveAll(filepath.Join(root, "missing")))
}
