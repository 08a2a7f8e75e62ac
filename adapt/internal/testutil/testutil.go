// Package testutil provides shared test infrastructure for the adapt
// packages: a scripted classifier, in-memory datasets and float assertions.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/legal-ner/ner-adapt/adapt"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// PredBatch builds a batch the FakeClassifier will score deterministically:
// row i predicts preds[i] and is labelled labels[i].
func PredBatch(preds, labels []int) *adapt.Batch {
	x := mat.NewDense(len(preds), 1, nil)
	for i, p := range preds {
		x.Set(i, 0, float64(p))
	}
	return &adapt.Batch{Inputs: x, Labels: append([]int(nil), labels...)}
}

// RepeatBatch builds n rows that all predict pred and are labelled label.
func RepeatBatch(n, pred, label int) *adapt.Batch {
	preds := make([]int, n)
	labels := make([]int, n)
	for i := range preds {
		preds[i] = pred
		labels[i] = label
	}
	return PredBatch(preds, labels)
}

// SliceDataset serves fixed batches in order. Opens counts Iter calls and
// Closed counts closed passes.
type SliceDataset struct {
	Batches []*adapt.Batch
	Opens   int
	Closed  int
}

// NewSliceDataset creates a dataset of n one-row batches labelled 0.
func NewSliceDataset(n int) *SliceDataset {
	ds := &SliceDataset{}
	for i := 0; i < n; i++ {
		ds.Batches = append(ds.Batches, RepeatBatch(1, 0, 0))
	}
	return ds
}

func (d *SliceDataset) Len() int {
	return len(d.Batches)
}

func (d *SliceDataset) Iter() adapt.Pass {
	d.Opens++
	return &slicePass{d: d}
}

type slicePass struct {
	d      *SliceDataset
	pos    int
	closed bool
}

func (p *slicePass) Next() (*adapt.Batch, bool, error) {
	if p.pos >= len(p.d.Batches) {
		return nil, false, nil
	}
	b := p.d.Batches[p.pos]
	p.pos++
	return b, true, nil
}

func (p *slicePass) Close() {
	if !p.closed {
		p.closed = true
		p.d.Closed++
	}
}
