package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPrefetch_YieldsSameBatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	// GIVEN a fixed-order dataset and a prefetching wrapper
	ds, err := NewDataset(sentences(7), 2, 1, nil)
	require.NoError(t, err)
	pf := Prefetch(ds, 2)
	assert.Equal(t, ds.Len(), pf.Len())

	// THEN two consecutive passes yield the same batches as the inner dataset
	want := drain(t, ds.Iter())
	for pass := 0; pass < 2; pass++ {
		got := drain(t, pf.Iter())
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Labels, got[i].Labels)
		}
	}
}

func TestPrefetch_CloseMidPassStopsReader(t *testing.T) {
	defer goleak.VerifyNone(t)

	// GIVEN a pass closed after one batch of many
	ds, err := NewDataset(sentences(50), 1, 1, nil)
	require.NoError(t, err)
	p := Prefetch(ds, 1).Iter()
	_, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)

	// WHEN it is closed, twice
	p.Close()
	p.Close()

	// THEN the reader goroutine has exited and the pass reports its end
	_, ok, err = p.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPrefetch_ZeroDepthIsPassthrough(t *testing.T) {
	ds, err := NewDataset(sentences(3), 1, 1, nil)
	require.NoError(t, err)
	assert.Same(t, ds, Prefetch(ds, 0))
}
