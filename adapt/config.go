package adapt

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Sentinel errors. Configuration and data errors are fatal for the run;
// stream exhaustion never escapes the Feeder.
var (
	ErrInvalidConfig   = errors.New("invalid training config")
	ErrEmptyDataset    = errors.New("dataset yields no batches")
	ErrEmptyValidation = errors.New("validation dataset yields no labelled tokens")
	ErrNilBatch        = errors.New("nil batch data")
)

// LRTrigger selects how a learning-rate decay point is matched.
type LRTrigger string

const (
	// LRTriggerExact fires only on the tick whose effective iteration equals the
	// decay point. A point no tick lands on never fires.
	LRTriggerExact LRTrigger = "exact"
	// LRTriggerCrossing fires on the tick whose effective iteration first reaches
	// or passes the decay point.
	LRTriggerCrossing LRTrigger = "crossing"
)

// ValidLRTriggers is the set of recognized decay trigger modes ("" = exact).
var ValidLRTriggers = map[string]bool{"": true, string(LRTriggerExact): true, string(LRTriggerCrossing): true}

// DefaultKeepCheckpoints is the number of recent checkpoints retained on disk.
const DefaultKeepCheckpoints = 9

// TrainingConfig groups the hyperparameters of the training loop.
// Iteration-valued fields count effective iterations (optimizer steps),
// never micro-batches.
type TrainingConfig struct {
	TotalBatch      int64     // effective batch size simulated by accumulation
	MicroBatchSize  int64     // batch size of one forward/backward pass
	NumIterations   int64     // effective iterations to train for
	LRSteps         []float64 // decay points, in effective iterations
	LRTrigger       LRTrigger // "exact" (default) or "crossing"
	EvalFrequency   int64     // validate every N effective iterations
	ResumeFrom      string    // checkpoint to resume from (optional)
	KeepCheckpoints int       // recent checkpoints to retain (0 = DefaultKeepCheckpoints)
	LogDir          string    // per-run directory for the accuracy log and checkpoints
	Shift           string    // "<source>-<target>", names the accuracy log
	RunID           string    // stamped into checkpoints
	Variant         string    // classifier variant, stamped into checkpoints
}

// Validate checks that the configuration is usable before any tick runs.
func (c TrainingConfig) Validate() error {
	if c.MicroBatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.MicroBatchSize)
	}
	if c.TotalBatch < c.MicroBatchSize {
		return fmt.Errorf("%w: total_batch (%d) must be >= batch_size (%d)", ErrInvalidConfig, c.TotalBatch, c.MicroBatchSize)
	}
	if c.TotalBatch%c.MicroBatchSize != 0 {
		return fmt.Errorf("%w: total_batch (%d) must be a multiple of batch_size (%d)", ErrInvalidConfig, c.TotalBatch, c.MicroBatchSize)
	}
	if c.NumIterations <= 0 {
		return fmt.Errorf("%w: num_iter must be positive, got %d", ErrInvalidConfig, c.NumIterations)
	}
	if c.EvalFrequency <= 0 {
		return fmt.Errorf("%w: eval_freq must be positive, got %d", ErrInvalidConfig, c.EvalFrequency)
	}
	if !ValidLRTriggers[string(c.LRTrigger)] {
		return fmt.Errorf("%w: unknown lr_trigger %q; valid: exact, crossing", ErrInvalidConfig, c.LRTrigger)
	}
	for i, p := range c.LRSteps {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("%w: lr_steps[%d] must be a finite positive iteration, got %v", ErrInvalidConfig, i, p)
		}
	}
	if c.KeepCheckpoints < 0 {
		return fmt.Errorf("%w: keep_checkpoints must be >= 0, got %d", ErrInvalidConfig, c.KeepCheckpoints)
	}
	if c.LogDir == "" {
		return fmt.Errorf("%w: log_dir is required", ErrInvalidConfig)
	}
	return nil
}

// AccumulationRatio is the number of micro-batches per optimizer step.
// Only meaningful on a validated config.
func (c TrainingConfig) AccumulationRatio() int64 {
	return c.TotalBatch / c.MicroBatchSize
}

// AccuracyLogPath returns <LogDir>/val_precision_<source>-<target>.txt.
func (c TrainingConfig) AccuracyLogPath() string {
	return filepath.Join(c.LogDir, AccuracyLogName(c.Shift))
}

// CheckpointDir is where the rotating checkpoint store writes.
func (c TrainingConfig) CheckpointDir() string {
	return filepath.Join(c.LogDir, "checkpoints")
}

// AccuracyLogName builds the accuracy log file name from a "<source>-<target>"
// shift. Only the first and last dash-separated parts are used.
func AccuracyLogName(shift string) string {
	parts := strings.Split(shift, "-")
	return fmt.Sprintf("val_precision_%s-%s.txt", parts[0], parts[len(parts)-1])
}

func (c TrainingConfig) keepCheckpoints() int {
	if c.KeepCheckpoints == 0 {
		return DefaultKeepCheckpoints
	}
	return c.KeepCheckpoints
}
