package adapt_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legal-ner/ner-adapt/adapt"
	"github.com/legal-ner/ner-adapt/adapt/internal/testutil"
)

func TestValidator_EvaluateAppendsAccuracyLog(t *testing.T) {
	// GIVEN a validation set where 3 of 4 tokens are predicted correctly
	clf := testutil.NewFakeClassifier(3)
	data := &testutil.SliceDataset{Batches: []*adapt.Batch{
		testutil.PredBatch([]int{0, 1}, []int{0, 1}),
		testutil.PredBatch([]int{2, 0}, []int{2, 1}),
	}}
	logPath := filepath.Join(t.TempDir(), "val_precision_legal-defense.txt")
	v, err := adapt.NewValidator(clf, data, 20, logPath)
	require.NoError(t, err)

	// WHEN it is evaluated twice
	res, err := v.Evaluate(5)
	require.NoError(t, err)
	_, err = v.Evaluate(10)
	require.NoError(t, err)

	// THEN the result reflects one full pass
	testutil.AssertFloat64Equal(t, "top1", 75.0, res.Top1, 1e-9)
	assert.Equal(t, map[int]float64{0: 100, 1: 50, 2: 100}, res.PerClass)
	assert.Equal(t, 4, clf.Predicts)

	// AND one log line is appended per validation
	got, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "[5/20]\tAcc@top1: 75.00%\n[10/20]\tAcc@top1: 75.00%\n", string(got))

	// AND the classifier is back in training mode
	assert.True(t, clf.Training)
	assert.Equal(t, []bool{false, true, false, true}, clf.Modes)
}

func TestValidator_EmptyDatasetRejected(t *testing.T) {
	_, err := adapt.NewValidator(testutil.NewFakeClassifier(2), testutil.NewSliceDataset(0), 10, "")
	assert.True(t, errors.Is(err, adapt.ErrInvalidConfig))
	assert.True(t, errors.Is(err, adapt.ErrEmptyValidation))
}

func TestValidator_NoLabelledTokens(t *testing.T) {
	// GIVEN a validation set where every token is ignored
	clf := testutil.NewFakeClassifier(2)
	data := &testutil.SliceDataset{Batches: []*adapt.Batch{
		testutil.PredBatch([]int{0, 1}, []int{adapt.IgnoreLabel, adapt.IgnoreLabel}),
	}}
	v, err := adapt.NewValidator(clf, data, 10, "")
	require.NoError(t, err)

	_, err = v.Evaluate(1)

	assert.True(t, errors.Is(err, adapt.ErrEmptyValidation))
	assert.True(t, clf.Training)
}

func TestValidator_NilBatch(t *testing.T) {
	clf := testutil.NewFakeClassifier(2)
	data := &testutil.SliceDataset{Batches: []*adapt.Batch{nil}}
	v, err := adapt.NewValidator(clf, data, 10, "")
	require.NoError(t, err)

	_, err = v.Evaluate(1)

	assert.True(t, errors.Is(err, adapt.ErrNilBatch))
	assert.Equal(t, 1, data.Closed)
}

func TestValidator_UnwritableLogIsNotFatal(t *testing.T) {
	// GIVEN a log path whose parent is a regular file
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	data := &testutil.SliceDataset{Batches: []*adapt.Batch{testutil.PredBatch([]int{0}, []int{0})}}
	v, err := adapt.NewValidator(testutil.NewFakeClassifier(2), data, 10, filepath.Join(blocker, "acc.txt"))
	require.NoError(t, err)

	res, err := v.Evaluate(1)

	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Top1, 1e-9)
}
