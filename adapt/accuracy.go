package adapt

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// AccuracyMeter accumulates top-1/top-k correctness per class. A meter is
// allocated per validation run (or per training window); it is never reset.
type AccuracyMeter struct {
	numClasses int
	k          int
	correct    []int64 // top-1 hits per class
	total      []int64
	topK       int64
}

// NewAccuracyMeter creates a meter reporting top-1 and top-min(5, numClasses).
func NewAccuracyMeter(numClasses int) *AccuracyMeter {
	return &AccuracyMeter{
		numClasses: numClasses,
		k:          min(5, numClasses),
		correct:    make([]int64, numClasses),
		total:      make([]int64, numClasses),
	}
}

// Add scores one batch of logits against its labels. Rows labelled
// IgnoreLabel are skipped.
func (m *AccuracyMeter) Add(logits *mat.Dense, labels []int) error {
	if logits == nil {
		return fmt.Errorf("accuracy: %w", ErrNilBatch)
	}
	r, c := logits.Dims()
	if r != len(labels) {
		return fmt.Errorf("accuracy: %d logit rows for %d labels", r, len(labels))
	}
	if c != m.numClasses {
		return fmt.Errorf("accuracy: %d logit columns, meter has %d classes", c, m.numClasses)
	}
	for i, label := range labels {
		if label == IgnoreLabel {
			continue
		}
		if label < 0 || label >= m.numClasses {
			return fmt.Errorf("accuracy: label %d out of range [0,%d)", label, m.numClasses)
		}
		row := logits.RawRowView(i)
		m.total[label]++
		if floats.MaxIdx(row) == label {
			m.correct[label]++
		}
		// label is in the top k when fewer than k logits beat it
		higher := 0
		for _, v := range row {
			if v > row[label] {
				higher++
			}
		}
		if higher < m.k {
			m.topK++
		}
	}
	return nil
}

// Examples returns the number of labelled rows scored so far.
func (m *AccuracyMeter) Examples() int64 {
	var n int64
	for _, t := range m.total {
		n += t
	}
	return n
}

// Top1 returns overall top-1 accuracy as a percentage (0 when empty).
func (m *AccuracyMeter) Top1() float64 {
	n := m.Examples()
	if n == 0 {
		return 0
	}
	var hit int64
	for _, c := range m.correct {
		hit += c
	}
	return float64(hit) / float64(n) * 100
}

// TopK returns overall top-k accuracy as a percentage (0 when empty).
func (m *AccuracyMeter) TopK() float64 {
	n := m.Examples()
	if n == 0 {
		return 0
	}
	return float64(m.topK) / float64(n) * 100
}

// Result snapshots the meter. Classes with no examples are left out of PerClass.
func (m *AccuracyMeter) Result(iteration int64) *ValidationResult {
	res := &ValidationResult{
		Iteration: iteration,
		Top1:      m.Top1(),
		Top5:      m.TopK(),
		PerClass:  make(map[int]float64),
		Correct:   append([]int64(nil), m.correct...),
		Total:     append([]int64(nil), m.total...),
		Examples:  m.Examples(),
	}
	for c := range m.total {
		if m.total[c] == 0 {
			continue
		}
		res.PerClass[c] = float64(m.correct[c]) / float64(m.total[c]) * 100
	}
	if len(res.PerClass) > 0 {
		accs := make([]float64, 0, len(res.PerClass))
		for _, c := range res.Classes() {
			accs = append(accs, res.PerClass[c])
		}
		res.ClassMean = stat.Mean(accs, nil)
	}
	return res
}

// ValidationResult is an immutable snapshot of one validation run.
type ValidationResult struct {
	Iteration int64           // effective iteration it was computed at
	Top1      float64         // percentage
	Top5      float64         // percentage
	PerClass  map[int]float64 // class id -> top-1 accuracy, only classes with examples
	Correct   []int64         // top-1 hits per class
	Total     []int64         // examples per class
	ClassMean float64         // unweighted mean of PerClass
	Examples  int64
}

// Classes returns the class ids present in PerClass in ascending order.
func (r *ValidationResult) Classes() []int {
	ids := make([]int, 0, len(r.PerClass))
	for c := range r.PerClass {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	return ids
}
