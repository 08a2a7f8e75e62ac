package data

import (
	"sync"

	"github.com/legal-ner/ner-adapt/adapt"
)

type fetched struct {
	b   *adapt.Batch
	ok  bool
	err error
}

// Prefetch wraps ds so that every pass reads up to depth batches ahead on its
// own goroutine. The goroutine exits at end of pass, on error, or when the
// pass is closed.
func Prefetch(ds adapt.Dataset, depth int) adapt.Dataset {
	if depth <= 0 {
		return ds
	}
	return &prefetchDataset{inner: ds, depth: depth}
}

type prefetchDataset struct {
	inner adapt.Dataset
	depth int
}

func (d *prefetchDataset) Len() int {
	return d.inner.Len()
}

// Iter opens the inner pass on the caller's goroutine, so shuffling stays
// deterministic, then hands it to the reader goroutine.
func (d *prefetchDataset) Iter() adapt.Pass {
	p := &prefetchPass{
		ch:   make(chan fetched, d.depth),
		done: make(chan struct{}),
	}
	inner := d.inner.Iter()
	p.wg.Add(1)
	go p.run(inner)
	return p
}

type prefetchPass struct {
	ch       chan fetched
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	finished bool
}

func (p *prefetchPass) run(inner adapt.Pass) {
	defer p.wg.Done()
	defer inner.Close()
	for {
		b, ok, err := inner.Next()
		select {
		case p.ch <- fetched{b: b, ok: ok, err: err}:
		case <-p.done:
			return
		}
		if !ok || err != nil {
			return
		}
	}
}

func (p *prefetchPass) Next() (*adapt.Batch, bool, error) {
	if p.finished {
		return nil, false, nil
	}
	select {
	case <-p.done:
		p.finished = true
		return nil, false, nil
	default:
	}
	select {
	case f := <-p.ch:
		if !f.ok || f.err != nil {
			p.finished = true
		}
		return f.b, f.ok, f.err
	case <-p.done:
		p.finished = true
		return nil, false, nil
	}
}

// Close stops the reader goroutine and waits for it to exit.
func (p *prefetchPass) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
