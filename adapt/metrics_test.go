package adapt

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunSummary_MeanLoss(t *testing.T) {
	assert.Equal(t, 0.0, (&RunSummary{}).MeanLoss())
	assert.InDelta(t, 0.25, (&RunSummary{Ticks: 4, LossSum: 1}).MeanLoss(), 1e-12)
}

func TestRunSummary_PrintToStdout(t *testing.T) {
	// GIVEN a summary of a finished run
	s := &RunSummary{
		RunID:          "abc",
		StartIteration: 2,
		FinalIteration: Iteration{Raw: 8, Ratio: 2},
		Ticks:          4,
		OptimizerSteps: 2,
		Validations:    1,
		LossSum:        2,
		LastTop1:       61.25,
		Best:           BestRecord{Iteration: 4, Score: 61.25},
		Elapsed:        1500 * time.Millisecond,
	}

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// WHEN it is printed
	s.Print()

	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	output := buf.String()

	// THEN the headline numbers are on stdout
	assert.Contains(t, output, "=== Training Summary ===")
	assert.Contains(t, output, "2 -> 4")
	assert.Contains(t, output, "Mean loss            : 0.5000")
	assert.Contains(t, output, "61.25% at iteration 4")
}
