package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Sweep(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)

	touch := func(name string, mtime time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}
	stale := touch("cutout_stale.png", old)
	fresh := touch("cutout_fresh.png", time.Now())
	other := touch("keep.png", old)

	s := NewSweeper(dir, 30*time.Minute)
	assert.Equal(t, 1, s.Sweep())

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, s.Sweep())
	assert.NoFileExists(t, fresh)
}

func TestSweeper_MissingDir(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "missing"), time.Minute)
	assert.Equal(t, 0, s.Sweep())
}

func TestSweeper_Schedule(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Minute)
	assert.Error(t, s.Start("not a schedule"))

	s = NewSweeper(t.TempDir(), time.Minute)
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
