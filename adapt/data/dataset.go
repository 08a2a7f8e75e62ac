package data

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/legal-ner/ner-adapt/adapt"
)

// Dataset batches sentences into micro-batches of BatchSize sentences,
// flattened to token rows. The last batch of a pass may be smaller.
type Dataset struct {
	sentences   []Sentence
	batchSize   int
	numFeatures int
	rng         *rand.Rand // nil = fixed order
}

// NewDataset wraps sentences. rng, when non-nil, reshuffles sentence order at
// the start of every pass.
func NewDataset(sentences []Sentence, batchSize, numFeatures int, rng *rand.Rand) (*Dataset, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &Dataset{sentences: sentences, batchSize: batchSize, numFeatures: numFeatures, rng: rng}, nil
}

// Len returns the number of batches per pass.
func (d *Dataset) Len() int {
	return (len(d.sentences) + d.batchSize - 1) / d.batchSize
}

// Sentences returns the number of sentences.
func (d *Dataset) Sentences() int {
	return len(d.sentences)
}

// Iter starts a new pass.
func (d *Dataset) Iter() adapt.Pass {
	order := make([]int, len(d.sentences))
	for i := range order {
		order[i] = i
	}
	if d.rng != nil {
		d.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &pass{d: d, order: order}
}

type pass struct {
	d     *Dataset
	order []int
	pos   int
}

func (p *pass) Next() (*adapt.Batch, bool, error) {
	if p.pos >= len(p.order) {
		return nil, false, nil
	}
	end := min(p.pos+p.d.batchSize, len(p.order))
	idx := p.order[p.pos:end]
	p.pos = end

	rows := 0
	for _, i := range idx {
		rows += len(p.d.sentences[i].Labels)
	}
	inputs := mat.NewDense(rows, p.d.numFeatures, nil)
	labels := make([]int, 0, rows)
	r := 0
	for _, i := range idx {
		s := p.d.sentences[i]
		for t, feat := range s.Features {
			inputs.SetRow(r, feat)
			labels = append(labels, s.Labels[t])
			r++
		}
	}
	return &adapt.Batch{Inputs: inputs, Labels: labels}, true, nil
}

func (p *pass) Close() {}
