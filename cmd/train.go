package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/legal-ner/ner-adapt/adapt"
	"github.com/legal-ner/ner-adapt/adapt/trace"
)

// trainCmd runs the iteration-based training loop
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a classifier on the source domain, adapting to the target domain",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveRunConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid run config: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, tr, err := runTrain(ctx, cfg)
		if summary != nil {
			summary.Print()
		}
		if tr != nil {
			printTraceSummary(trace.Summarize(tr))
		}
		if err != nil {
			logrus.Fatalf("Training failed: %v", err)
		}
		logrus.Info("Training complete.")
	},
}

// runTrain loads the data, builds the classifier and runs the trainer. The
// summary is returned even when the run fails part way.
func runTrain(ctx context.Context, cfg RunConfig) (*adapt.RunSummary, *trace.TrainingTrace, error) {
	runID := uuid.NewString()
	log := logrus.WithField("run_id", runID)

	rng := adapt.NewPartitionedRNG(cfg.Run.Seed)
	td, numClasses, err := loadTrainingData(cfg, rng)
	if err != nil {
		return nil, nil, err
	}
	clf, _, err := buildClassifier(cfg, numClasses, "")
	if err != nil {
		return nil, nil, err
	}

	tr := trace.NewTrainingTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.Run.Trace)})
	tc := cfg.TrainingConfig(runID)
	trainer, err := adapt.NewTrainer(tc, clf, td, tr)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Starting %s training: total_batch=%d batch_size=%d num_iter=%d lr_steps=%v eval_freq=%d log_dir=%s",
		cfg.Model.Variant, tc.TotalBatch, tc.MicroBatchSize, tc.NumIterations, tc.LRSteps, tc.EvalFrequency, tc.LogDir)

	summary, err := trainer.Run(ctx)
	return summary, tr, err
}

// printTraceSummary displays event counts collected with --trace=events.
func printTraceSummary(s *trace.TraceSummary) {
	fmt.Println("=== Trace Summary ===")
	fmt.Printf("LR decays            : %d\n", s.Decays)
	fmt.Printf("Validations          : %d\n", s.Validations)
	fmt.Printf("Improvements         : %d\n", s.Improvements)
	fmt.Printf("Best                 : %.2f%% at iteration %d\n", s.BestScore, s.BestIteration)
	fmt.Printf("Monotone best        : %t\n", s.MonotoneBest)
	fmt.Printf("Failed checkpoints   : %d\n", s.FailedCheckpoints)
	for _, stream := range []string{string(adapt.StreamSource), string(adapt.StreamTarget)} {
		fmt.Printf("Restarts (%-6s)    : %d\n", stream, s.RestartsByStream[stream])
	}
}
