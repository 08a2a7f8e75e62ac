package adapt

import "fmt"

// Iteration is an effective iteration expressed exactly as Raw/Ratio, where Raw
// counts micro-batches and Ratio is the accumulation ratio. Window and eval
// checks use integer arithmetic on Raw.
type Iteration struct {
	Raw   int64
	Ratio int64
}

// IsWhole reports whether the iteration is an integer, i.e. Raw is a multiple of Ratio.
func (it Iteration) IsWhole() bool {
	return it.Raw%it.Ratio == 0
}

// Whole returns the integer part of the iteration.
func (it Iteration) Whole() int64 {
	return it.Raw / it.Ratio
}

// Float64 is the effective iteration rounded to float64. Decay points are
// matched against it; window and eval checks use Raw.
func (it Iteration) Float64() float64 {
	return float64(it.Raw) / float64(it.Ratio)
}

// Equals reports whether the iteration lands exactly on point. The quotient
// Raw/Ratio is rounded once and compared with point, so a point written as the
// rounded quotient (e.g. 29/7) matches where point*Ratio would not.
func (it Iteration) Equals(point float64) bool {
	return it.Float64() == point
}

// AtLeast reports whether the iteration has reached point.
func (it Iteration) AtLeast(point float64) bool {
	return it.Float64() >= point
}

func (it Iteration) String() string {
	if it.IsWhole() {
		return fmt.Sprintf("%d", it.Whole())
	}
	return fmt.Sprintf("%d/%d", it.Raw, it.Ratio)
}

// IterationState is the orchestrator's mutable iteration bookkeeping.
// Raw only ever increases.
type IterationState struct {
	raw   int64
	ratio int64
}

// NewIterationState starts at effective iteration resumed (0 for a fresh run),
// i.e. raw counter resumed*ratio. Skipped micro-batches are not replayed.
func NewIterationState(ratio, resumed int64) *IterationState {
	return &IterationState{raw: resumed * ratio, ratio: ratio}
}

// Advance consumes one micro-batch and returns the new effective iteration.
func (s *IterationState) Advance() Iteration {
	s.raw++
	return s.Effective()
}

// Effective returns the current effective iteration.
func (s *IterationState) Effective() Iteration {
	return Iteration{Raw: s.raw, Ratio: s.ratio}
}

// Raw returns the number of micro-batches counted so far, including the
// resumed offset.
func (s *IterationState) Raw() int64 {
	return s.raw
}
