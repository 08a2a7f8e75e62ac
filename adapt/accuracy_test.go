package adapt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// oneHot builds logits whose argmax for row i is preds[i].
func oneHot(preds []int, numClasses int) *mat.Dense {
	m := mat.NewDense(len(preds), numClasses, nil)
	for i, p := range preds {
		m.Set(i, p, 1)
	}
	return m
}

func TestAccuracyMeter_PerClassOmitsEmptyClasses(t *testing.T) {
	// GIVEN class 0 with 8/10 correct, class 1 absent, class 2 with 5/5 correct
	m := NewAccuracyMeter(3)
	var preds, labels []int
	for i := 0; i < 10; i++ {
		labels = append(labels, 0)
		if i < 8 {
			preds = append(preds, 0)
		} else {
			preds = append(preds, 2)
		}
	}
	for i := 0; i < 5; i++ {
		labels = append(labels, 2)
		preds = append(preds, 2)
	}
	require.NoError(t, m.Add(oneHot(preds, 3), labels))

	// WHEN the result is computed
	res := m.Result(7)

	// THEN class 1 is left out and the others are percentages
	assert.Equal(t, map[int]float64{0: 80, 2: 100}, res.PerClass)
	assert.Equal(t, []int{0, 2}, res.Classes())
	assert.InDelta(t, 13.0/15.0*100, res.Top1, 1e-9)
	assert.InDelta(t, 90.0, res.ClassMean, 1e-9)
	assert.Equal(t, int64(15), res.Examples)
	assert.Equal(t, int64(7), res.Iteration)
}

func TestAccuracyMeter_SkipsIgnoredRows(t *testing.T) {
	m := NewAccuracyMeter(2)
	require.NoError(t, m.Add(oneHot([]int{0, 1, 1}, 2), []int{0, IgnoreLabel, 0}))
	assert.Equal(t, int64(2), m.Examples())
	assert.InDelta(t, 50.0, m.Top1(), 1e-9)
}

func TestAccuracyMeter_TopK(t *testing.T) {
	// GIVEN 7 classes, so k = 5
	m := NewAccuracyMeter(7)
	logits := mat.NewDense(2, 7, []float64{
		// label 6 ranks 7th
		7, 6, 5, 4, 3, 2, 1,
		// label 4 ranks 5th
		7, 6, 5, 4, 3, 2, 1,
	})
	require.NoError(t, m.Add(logits, []int{6, 4}))

	assert.InDelta(t, 0.0, m.Top1(), 1e-9)
	assert.InDelta(t, 50.0, m.TopK(), 1e-9)
}

func TestAccuracyMeter_EmptyIsZero(t *testing.T) {
	m := NewAccuracyMeter(4)
	assert.Equal(t, 0.0, m.Top1())
	assert.Equal(t, 0.0, m.TopK())
	res := m.Result(0)
	assert.Empty(t, res.PerClass)
	assert.Equal(t, 0.0, res.ClassMean)
}

func TestAccuracyMeter_RejectsBadInput(t *testing.T) {
	m := NewAccuracyMeter(3)
	assert.True(t, errors.Is(m.Add(nil, nil), ErrNilBatch))
	assert.Error(t, m.Add(oneHot([]int{0}, 3), []int{0, 1}))
	assert.Error(t, m.Add(oneHot([]int{0}, 3), []int{3}))
	assert.Error(t, m.Add(mat.NewDense(1, 2, nil), []int{0}))
}
