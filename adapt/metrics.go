// Tracks run-wide training counters for the end-of-run report.

package adapt

import (
	"fmt"
	"time"
)

// RunSummary aggregates what happened during a training run.
type RunSummary struct {
	RunID          string
	StartIteration int64 // effective iteration the run resumed from (0 if fresh)
	FinalIteration Iteration
	Ticks          int64 // micro-batches consumed in this run
	OptimizerSteps int64
	Validations    int64
	Decays         int64
	SourceRestarts int
	TargetRestarts int
	LossSum        float64
	LastTop1       float64
	Best           BestRecord
	LearningRate   float64
	Elapsed        time.Duration
}

// MeanLoss returns the average micro-batch loss (0 when no ticks ran).
func (s *RunSummary) MeanLoss() float64 {
	if s.Ticks == 0 {
		return 0
	}
	return s.LossSum / float64(s.Ticks)
}

// Print displays the summary at the end of a run.
func (s *RunSummary) Print() {
	fmt.Println("=== Training Summary ===")
	fmt.Printf("Run ID               : %s\n", s.RunID)
	fmt.Printf("Iterations           : %d -> %s\n", s.StartIteration, s.FinalIteration)
	fmt.Printf("Micro-batches        : %d\n", s.Ticks)
	fmt.Printf("Optimizer steps      : %d\n", s.OptimizerSteps)
	fmt.Printf("Validations          : %d\n", s.Validations)
	fmt.Printf("LR decays            : %d (final lr %.3g)\n", s.Decays, s.LearningRate)
	fmt.Printf("Stream restarts      : source=%d target=%d\n", s.SourceRestarts, s.TargetRestarts)
	if s.Ticks > 0 {
		fmt.Printf("Mean loss            : %.4f\n", s.MeanLoss())
	}
	if s.Validations > 0 {
		fmt.Printf("Last top1            : %.2f%%\n", s.LastTop1)
	}
	fmt.Printf("Best top1            : %.2f%% at iteration %d\n", s.Best.Score, s.Best.Iteration)
	fmt.Printf("Elapsed              : %s\n", s.Elapsed.Round(time.Millisecond))
}
