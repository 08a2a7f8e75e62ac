package trace

// TraceSummary aggregates statistics from a TrainingTrace.
type TraceSummary struct {
	Decays            int
	Validations       int
	Improvements      int
	BestScore         float64
	BestIteration     int64
	MonotoneBest      bool           // every improvement was strictly above the previous best
	FailedCheckpoints int
	RestartsByStream  map[string]int // stream -> restart count
}

// Summarize computes aggregate statistics from a TrainingTrace.
// Safe for nil or empty traces (returns zero-value fields, MonotoneBest true).
func Summarize(tt *TrainingTrace) *TraceSummary {
	summary := &TraceSummary{
		MonotoneBest:     true,
		RestartsByStream: make(map[string]int),
	}
	if tt == nil {
		return summary
	}

	summary.Decays = len(tt.Decays)
	summary.Validations = len(tt.Validations)

	best := 0.0
	for _, v := range tt.Validations {
		if !v.Improved {
			continue
		}
		if summary.Improvements > 0 && v.Top1 <= best {
			summary.MonotoneBest = false
		}
		summary.Improvements++
		best = v.Top1
		summary.BestScore = v.Top1
		summary.BestIteration = v.Iteration
	}

	for _, c := range tt.Checkpoints {
		if c.Err != "" {
			summary.FailedCheckpoints++
		}
	}

	for _, r := range tt.Restarts {
		summary.RestartsByStream[r.Stream]++
	}

	return summary
}
