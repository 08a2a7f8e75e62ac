package data

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legal-ner/ner-adapt/adapt"
)

// sentences builds n one-feature sentences; sentence i has i%3+1 tokens,
// all with feature value i and label i.
func sentences(n int) []Sentence {
	out := make([]Sentence, n)
	for i := range out {
		tokens := i%3 + 1
		s := Sentence{}
		for k := 0; k < tokens; k++ {
			s.Features = append(s.Features, []float64{float64(i)})
			s.Labels = append(s.Labels, i)
		}
		out[i] = s
	}
	return out
}

func drain(t *testing.T, p adapt.Pass) []*adapt.Batch {
	t.Helper()
	defer p.Close()
	var out []*adapt.Batch
	for {
		b, ok, err := p.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestDataset_BatchesFlattenSentences(t *testing.T) {
	// GIVEN 5 sentences in batches of 2
	ds, err := NewDataset(sentences(5), 2, 1, nil)
	require.NoError(t, err)

	// THEN a pass yields ceil(5/2) batches
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 5, ds.Sentences())
	batches := drain(t, ds.Iter())
	require.Len(t, batches, 3)

	// AND tokens are flattened into rows in sentence order
	assert.Equal(t, []int{0, 1, 1}, batches[0].Labels)
	assert.Equal(t, 3, batches[0].Rows())
	assert.Equal(t, []int{2, 2, 2, 3}, batches[1].Labels)
	assert.Equal(t, []int{4, 4}, batches[2].Labels)
	assert.Equal(t, 3.0, batches[1].Inputs.At(3, 0))
}

func TestDataset_ShufflesEachPass(t *testing.T) {
	// GIVEN a shuffled dataset of one-sentence batches
	ds, err := NewDataset(sentences(20), 1, 1, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	order := func() []int {
		var ids []int
		for _, b := range drain(t, ds.Iter()) {
			ids = append(ids, b.Labels[0])
		}
		return ids
	}
	first, second := order(), order()

	// THEN every pass covers every sentence once, in a new order
	assert.ElementsMatch(t, first, second)
	assert.Len(t, first, 20)
	assert.NotEqual(t, first, second)
}

func TestDataset_EmptyAndInvalid(t *testing.T) {
	ds, err := NewDataset(nil, 4, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Empty(t, drain(t, ds.Iter()))

	_, err = NewDataset(sentences(2), 0, 1, nil)
	assert.Error(t, err)
}
