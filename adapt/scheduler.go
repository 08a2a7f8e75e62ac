package adapt

// LRScheduler fires each configured decay point at most once per run.
type LRScheduler struct {
	points  []float64
	trigger LRTrigger
	fired   []bool
}

// NewLRScheduler creates a scheduler for the given decay points.
// An empty trigger means LRTriggerExact.
func NewLRScheduler(points []float64, trigger LRTrigger) *LRScheduler {
	if trigger == "" {
		trigger = LRTriggerExact
	}
	return &LRScheduler{
		points:  append([]float64(nil), points...),
		trigger: trigger,
		fired:   make([]bool, len(points)),
	}
}

// Due returns the decay points that fire on the tick moving from prev to cur.
//
// In exact mode a point fires only when cur equals it. If the accumulation
// ratio makes the point unreachable (e.g. 2.3 with ratio 2) it never fires.
// In crossing mode a point fires when prev < point <= cur, so a run resumed
// past a point does not decay again.
func (s *LRScheduler) Due(prev, cur Iteration) []float64 {
	var due []float64
	for i, p := range s.points {
		if s.fired[i] {
			continue
		}
		var hit bool
		switch s.trigger {
		case LRTriggerCrossing:
			hit = cur.AtLeast(p) && !prev.AtLeast(p)
		default:
			hit = cur.Equals(p)
		}
		if hit {
			s.fired[i] = true
			due = append(due, p)
		}
	}
	return due
}

// Fired returns how many decay points have fired so far.
func (s *LRScheduler) Fired() int {
	n := 0
	for _, f := range s.fired {
		if f {
			n++
		}
	}
	return n
}
