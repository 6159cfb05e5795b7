package fsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkDirCreatesNestedDir(t *testing.T) {
	s := New(t.TempDir())

	dir, err := s.WorkDir("job-123")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	dir, err := s.WorkDir("job-123")
	require.NoError(t, err)

	path := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	assert.NoError(t, s.Remove(path))
	assert.NoError(t, s.Remove(path), "second remove of the same path must succeed silently")
	assert.NoError(t, s.Remove(filepath.Join(dir, "never-existed.jpg")))
}

func TestRemoveAllClearsWorkDir(t *testing.T) {
	s := New(t.TempDir())
	dir, err := s.WorkDir("job-123")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.jpg"), []byte("data"), 0o644))

	require.NoError(t, s.RemoveAll(dir))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
