// Package trace provides training-event recording for post-run analysis.
// It does not import adapt/ and stores pure data types only.
package trace

// DecayRecord captures one learning-rate reduction.
type DecayRecord struct {
	Raw          int64   // micro-batch counter at the tick
	Iteration    float64 // effective iteration at the tick
	Point        float64 // configured decay point that fired
	LearningRate float64 // learning rate after the reduction
}

// RestartRecord captures a stream restarting after exhaustion.
type RestartRecord struct {
	Stream   string
	Raw      int64
	Restarts int // total restarts of this stream so far
}

// ValidationRecord captures one validation event.
type ValidationRecord struct {
	Iteration int64
	Top1      float64
	Top5      float64
	ClassMean float64
	Improved  bool // strictly better than the best score before it
}

// CheckpointRecord captures one checkpoint persistence attempt.
type CheckpointRecord struct {
	Iteration int64
	Score     float64
	Path      string // empty when the save failed
	Err       string // empty on success
}
