package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(it int64, score float64) *Envelope {
	return &Envelope{RunID: "r", Iteration: it, Score: score, Model: json.RawMessage(`{"w":[1,2]}`)}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ckpt_iter_000042_top1_81.57.json", FileName(42, 81.5678))
}

func TestStore_SaveAndLoad(t *testing.T) {
	// GIVEN a store in a directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "nested", "ckpt")
	s := NewStore(dir, 3)

	// WHEN an envelope is saved
	path, err := s.Save(envelope(7, 55.5))
	require.NoError(t, err)

	// THEN it loads back intact with a creation time
	env, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), env.Iteration)
	assert.Equal(t, 55.5, env.Score)
	assert.JSONEq(t, `{"w":[1,2]}`, string(env.Model))
	assert.False(t, env.CreatedAt.IsZero())
	assert.Equal(t, dir, s.Dir())

	// AND no temporary file is left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_RotationKeepsMostRecent(t *testing.T) {
	// GIVEN a store keeping 3 checkpoints
	dir := t.TempDir()
	s := NewStore(dir, 3)

	// WHEN 5 are saved
	var paths []string
	for it := int64(1); it <= 5; it++ {
		p, err := s.Save(envelope(it, float64(it)))
		require.NoError(t, err)
		paths = append(paths, p)
	}

	// THEN only the last 3 remain, oldest first
	assert.Equal(t, paths[2:], s.Saved())
	for _, p := range paths[:2] {
		assert.NoFileExists(t, p)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestStore_ResaveSameKeyIsTrackedOnce(t *testing.T) {
	s := NewStore(t.TempDir(), 2)
	a, err := s.Save(envelope(1, 10))
	require.NoError(t, err)
	_, err = s.Save(envelope(2, 20))
	require.NoError(t, err)
	again, err := s.Save(envelope(1, 10))
	require.NoError(t, err)

	assert.Equal(t, a, again)
	assert.Len(t, s.Saved(), 2)
	assert.Equal(t, a, s.Saved()[1])
	assert.FileExists(t, a)
}

func TestStore_KeepZeroKeepsAll(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	for it := int64(1); it <= 12; it++ {
		_, err := s.Save(envelope(it, 1))
		require.NoError(t, err)
	}
	assert.Len(t, s.Saved(), 12)
}

func TestStore_UnwritableDirectory(t *testing.T) {
	// GIVEN a checkpoint directory path that is a regular file
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	path, err := NewStore(blocker, 3).Save(envelope(1, 1))

	assert.Error(t, err)
	assert.Empty(t, path)
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	tests := []struct {
		name   string
		path   string
		errMsg string
	}{
		{"missing file", filepath.Join(dir, "none.json"), "reading checkpoint"},
		{"bad json", write("bad.json", "{"), "parsing checkpoint"},
		{"negative iteration", write("neg.json", `{"iteration": -1, "model": {}}`), "negative iteration"},
		{"no model", write("nomodel.json", `{"iteration": 3}`), "missing model state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewStore_TracksCheckpointsAlreadyOnDisk(t *testing.T) {
	// GIVEN a directory left behind by an earlier run, plus an unrelated file
	dir := t.TempDir()
	earlier := NewStore(dir, 0)
	for _, it := range []int64{8, 6} {
		_, err := earlier.Save(envelope(it, 50))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0644))

	// WHEN a new store keeping 2 is opened on it and saves two more
	s := NewStore(dir, 2)
	assert.Equal(t, []string{
		filepath.Join(dir, FileName(6, 50)),
		filepath.Join(dir, FileName(8, 50)),
	}, s.Saved())
	for _, it := range []int64{10, 12} {
		_, err := s.Save(envelope(it, 50))
		require.NoError(t, err)
	}

	// THEN only the two newest checkpoints remain
	files, err := filepath.Glob(filepath.Join(dir, "ckpt_iter_*.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, FileName(10, 50)),
		filepath.Join(dir, FileName(12, 50)),
	}, files)
	assert.FileExists(t, filepath.Join(dir, "notes.json"))
}

func TestNewStore_MissingDirectory(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "not-yet"), 3)
	assert.Empty(t, s.Saved())
}
