package adapt

import "fmt"

// Stream names one of the two training streams.
type Stream string

const (
	StreamSource Stream = "source"
	StreamTarget Stream = "target"
)

// StreamCursor holds the current pass over a borrowed dataset.
type StreamCursor struct {
	name     Stream
	data     Dataset
	pass     Pass
	restarts int
}

func newStreamCursor(name Stream, data Dataset) *StreamCursor {
	return &StreamCursor{name: name, data: data}
}

// next draws one batch. On end of pass the old pass is closed and a fresh one
// is opened and drawn from exactly once; an end of pass on the fresh pass means
// the dataset is empty.
func (c *StreamCursor) next() (*Batch, error) {
	if c.pass == nil {
		c.pass = c.data.Iter()
	}
	b, ok, err := c.pass.Next()
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", c.name, err)
	}
	if ok {
		return b, nil
	}

	c.pass.Close()
	c.pass = c.data.Iter()
	c.restarts++
	b, ok, err = c.pass.Next()
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", c.name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s stream: %w", c.name, ErrEmptyDataset)
	}
	return b, nil
}

func (c *StreamCursor) close() {
	if c.pass != nil {
		c.pass.Close()
		c.pass = nil
	}
}

// Feeder yields paired (source, target) micro-batches from two independently
// restarting streams. Exhaustion never reaches the caller.
type Feeder struct {
	source *StreamCursor
	target *StreamCursor
}

// NewFeeder wraps the source- and target-domain datasets.
func NewFeeder(source, target Dataset) *Feeder {
	return &Feeder{
		source: newStreamCursor(StreamSource, source),
		target: newStreamCursor(StreamTarget, target),
	}
}

// NextPair advances both streams by one micro-batch.
func (f *Feeder) NextPair() (*Batch, *Batch, error) {
	src, err := f.source.next()
	if err != nil {
		return nil, nil, err
	}
	tgt, err := f.target.next()
	if err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

// Restarts returns how many times the stream has been restarted after exhaustion.
func (f *Feeder) Restarts(s Stream) int {
	if s == StreamTarget {
		return f.target.restarts
	}
	return f.source.restarts
}

// Close closes any open passes.
func (f *Feeder) Close() {
	f.source.close()
	f.target.close()
}
