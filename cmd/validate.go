package cmd

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/legal-ner/ner-adapt/adapt"
)

// validateCmd scores a checkpoint on the validation split without training
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Evaluate a checkpoint on the target-domain validation split",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveRunConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid run config: %v", err)
		}
		appendLog, _ := cmd.Flags().GetBool("append-log")
		res, err := runValidate(cfg, appendLog)
		if err != nil {
			logrus.Fatalf("Validation failed: %v", err)
		}
		logrus.Infof("Top1 %.2f%% Top5 %.2f%% class mean %.2f%% over %d tokens",
			res.Top1, res.Top5, res.ClassMean, res.Examples)
	},
}

// runValidate restores the classifier from cfg.Run.ResumeFrom and evaluates
// it once. With appendLog the "[it/num_iter]" line is appended to the run's
// accuracy log; otherwise nothing is written to the log directory.
func runValidate(cfg RunConfig, appendLog bool) (*adapt.ValidationResult, error) {
	if cfg.Run.ResumeFrom == "" {
		return nil, errors.New("validate requires --resume-from")
	}
	src, tgt, err := labelSets(cfg)
	if err != nil {
		return nil, err
	}
	ds, err := loadSplit(cfg, splitSpecs(cfg, src, tgt)[2], adapt.NewPartitionedRNG(cfg.Run.Seed))
	if err != nil {
		return nil, err
	}
	clf, env, err := buildClassifier(cfg, src.Len(), cfg.Run.ResumeFrom)
	if err != nil {
		return nil, err
	}
	logPath := ""
	if appendLog {
		logPath = cfg.TrainingConfig("").AccuracyLogPath()
	}
	v, err := adapt.NewValidator(clf, ds, cfg.Train.NumIter, logPath)
	if err != nil {
		return nil, err
	}
	return v.Evaluate(env.Iteration)
}
