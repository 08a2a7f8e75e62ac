package adapt

import "gonum.org/v1/gonum/mat"

// IgnoreLabel marks a token row excluded from loss and accuracy
// (sub-word continuations, padding).
const IgnoreLabel = -100

// Batch is one micro-batch flattened to token rows: Inputs has one feature
// row per token and Labels one class id per row.
type Batch struct {
	Inputs *mat.Dense
	Labels []int
}

// Rows returns the number of token rows, 0 for a nil batch.
func (b *Batch) Rows() int {
	if b == nil || b.Inputs == nil {
		return 0
	}
	r, _ := b.Inputs.Dims()
	return r
}

// Pass is a single iteration over a Dataset.
// Next returns (batch, true, nil) for a batch, (nil, false, nil) at the end of
// the pass, and a non-nil error for a broken pipeline. Close releases any
// resources held by the pass and is safe to call more than once.
type Pass interface {
	Next() (*Batch, bool, error)
	Close()
}

// Dataset is a restartable source of micro-batches. Iter starts a new pass;
// datasets are shared and never mutated by the core.
type Dataset interface {
	Len() int
	Iter() Pass
}
