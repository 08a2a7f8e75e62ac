package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/legal-ner/ner-adapt/adapt"
	"github.com/legal-ner/ner-adapt/adapt/checkpoint"
)

// writeSplit writes n two-token sentences with two features per token.
// Tokens alternate between tags[0] and tags[1]; every third sentence ends
// with an ignored (empty) tag.
func writeSplit(t *testing.T, dir, name string, n int, tags [2]string) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		last := tags[1]
		if i%3 == 2 {
			last = ""
		}
		fmt.Fprintf(&sb, `{"features": [[%d, 0.5], [0.1, %d]], "tags": [%q, %q]}`+"\n", i%2, (i+1)%2, tags[0], last)
	}
	path := filepath.Join(dir, name+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

// tinyRunConfig trains 4 effective iterations at ratio 2, validating every 2.
func tinyRunConfig(t *testing.T) RunConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultRunConfig()
	cfg.Run.LogDir = filepath.Join(dir, "logs")
	cfg.Run.Trace = "events"
	cfg.Model.Hidden = 4
	cfg.Model.LearningRate = 0.1
	cfg.Dataset.NumFeatures = 2
	cfg.Dataset.Prefetch = 1
	cfg.Dataset.SourceTrain = writeSplit(t, dir, "legal_train", 5, [2]string{"O", "B-COURT"})
	cfg.Dataset.TargetTrain = writeSplit(t, dir, "defense_train", 7, [2]string{"O", "B-Person"})
	cfg.Dataset.Validation = writeSplit(t, dir, "defense_dev", 3, [2]string{"B-Person", "O"})
	cfg.Train = TrainSection{TotalBatch: 4, BatchSize: 2, NumIter: 4, LRSteps: []float64{3}, EvalFrequency: 2}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunTrain_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	// GIVEN tiny legal and defense splits
	cfg := tinyRunConfig(t)

	// WHEN training runs
	summary, tr, err := runTrain(context.Background(), cfg)
	require.NoError(t, err)

	// THEN 8 micro-batches made 4 optimizer steps with validations at 2 and 4
	assert.Equal(t, int64(8), summary.Ticks)
	assert.Equal(t, int64(4), summary.OptimizerSteps)
	assert.Equal(t, int64(2), summary.Validations)
	assert.Equal(t, int64(1), summary.Decays)
	assert.InDelta(t, 0.01, summary.LearningRate, 1e-12)
	assert.NotEmpty(t, summary.RunID)
	require.NotNil(t, tr)
	assert.Len(t, tr.Validations, 2)

	// AND the accuracy log has one line per validation
	logPath := filepath.Join(cfg.Run.LogDir, "val_precision_legal-defense.txt")
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[2/4]\tAcc@top1: "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[4/4]\tAcc@top1: "), lines[1])

	// AND each validation left a checkpoint stamped with the run id
	files, err := filepath.Glob(filepath.Join(cfg.Run.LogDir, "checkpoints", "ckpt_iter_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	env, err := checkpoint.Load(files[1])
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, env.RunID)
	assert.Equal(t, int64(4), env.Iteration)
	assert.Equal(t, "mmd", env.Variant)
}

func TestRunTrain_ResumeThenValidateAndExtract(t *testing.T) {
	// GIVEN a finished run
	cfg := tinyRunConfig(t)
	_, _, err := runTrain(context.Background(), cfg)
	require.NoError(t, err)
	files, err := filepath.Glob(filepath.Join(cfg.Run.LogDir, "checkpoints", "ckpt_iter_000002_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	t.Run("resume", func(t *testing.T) {
		resumed := cfg
		resumed.Run.ResumeFrom = files[0]
		resumed.Run.LogDir = filepath.Join(t.TempDir(), "resumed")

		summary, _, err := runTrain(context.Background(), resumed)

		require.NoError(t, err)
		assert.Equal(t, int64(2), summary.StartIteration)
		assert.Equal(t, int64(4), summary.Ticks)
		assert.Equal(t, int64(1), summary.Validations)
	})

	t.Run("validate", func(t *testing.T) {
		v := cfg
		v.Run.ResumeFrom = files[0]

		v.Run.LogDir = t.TempDir()

		res, err := runValidate(v, false)

		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Iteration)
		// 3 sentences, 2 tokens each, the third ends with an ignored token
		assert.Equal(t, int64(5), res.Examples)

		v.Run.ResumeFrom = ""
		_, err = runValidate(v, false)
		assert.Error(t, err)

		// AND without append-log the log dir stays empty
		entries, err := os.ReadDir(v.Run.LogDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("validate append-log", func(t *testing.T) {
		v := cfg
		v.Run.ResumeFrom = files[0]
		v.Run.LogDir = t.TempDir()

		_, err := runValidate(v, true)
		require.NoError(t, err)

		// THEN the accuracy log gains the checkpoint's line
		raw, err := os.ReadFile(filepath.Join(v.Run.LogDir, "val_precision_legal-defense.txt"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
		require.Len(t, lines, 1)
		assert.True(t, strings.HasPrefix(lines[0], "[2/4]\tAcc@top1: "), lines[0])
	})

	t.Run("extract", func(t *testing.T) {
		e := cfg
		e.Run.ResumeFrom = files[0]
		out := t.TempDir()

		paths, err := runExtract(e, out)

		require.NoError(t, err)
		require.Len(t, paths, 3)
		assert.Equal(t, filepath.Join(out, EmbeddingFileName("validation")), paths[2])
		lines := readJSONL(t, paths[2])
		assert.Len(t, lines, 5)
		assert.Len(t, lines[0].Embedding, cfg.Model.Hidden)
	})
}

func TestRunTrain_BadSplitFails(t *testing.T) {
	cfg := tinyRunConfig(t)
	cfg.Dataset.TargetTrain = filepath.Join(t.TempDir(), "missing.jsonl")

	_, _, err := runTrain(context.Background(), cfg)

	assert.ErrorContains(t, err, "target split")
}

func TestRunTrain_InvalidScheduleFails(t *testing.T) {
	cfg := tinyRunConfig(t)
	cfg.Train.TotalBatch = 3

	_, _, err := runTrain(context.Background(), cfg)

	assert.ErrorIs(t, err, adapt.ErrInvalidConfig)
}

func readJSONL(t *testing.T, path string) []embeddingRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []embeddingRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r embeddingRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}
