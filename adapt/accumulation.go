package adapt

// Accumulator decides when enough micro-batches have been consumed to form one
// effective batch. It is the only place where micro-batch granularity is
// promoted to effective-iteration events (optimizer step, LR decay, validation).
type Accumulator struct{}

// IsComplete reports whether the accumulation window ends on this iteration.
func (Accumulator) IsComplete(it Iteration) bool {
	return it.IsWhole()
}

// Pending returns how many micro-batches are accumulated but not yet stepped.
func (Accumulator) Pending(it Iteration) int64 {
	return it.Raw % it.Ratio
}
