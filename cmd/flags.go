package cmd

import (
	"github.com/spf13/pflag"
)

// registerRunFlags declares the flags shared by train, validate and extract.
// Defaults shown in help come from DefaultRunConfig; a flag only overrides
// the YAML value when it was set explicitly (see applyFlagOverrides).
func registerRunFlags(fs *pflag.FlagSet) {
	d := DefaultRunConfig()
	fs.String("config", "", "Path to the YAML run config")
	fs.String("resume-from", "", "Checkpoint to resume from")
	fs.Int64("total-batch", d.Train.TotalBatch, "Effective batch size simulated by gradient accumulation")
	fs.Int64("batch-size", d.Train.BatchSize, "Micro-batch size of one forward/backward pass")
	fs.Int64("num-iter", d.Train.NumIter, "Effective iterations to train for")
	fs.Float64Slice("lr-steps", d.Train.LRSteps, "Comma-separated learning-rate decay points, in effective iterations")
	fs.String("lr-trigger", d.Train.LRTrigger, "Decay trigger mode (exact, crossing)")
	fs.Int64("eval-freq", d.Train.EvalFrequency, "Validate every N effective iterations")
	fs.String("log-dir", d.Run.LogDir, "Directory for the accuracy log and checkpoints")
	fs.Int64("seed", d.Run.Seed, "Seed for weight init and shuffling")
	fs.String("trace", d.Run.Trace, "Event trace level (none, events)")
}

// applyFlagOverrides copies explicitly set flags over cfg. Flags left at their
// defaults never overwrite values from the YAML file.
func applyFlagOverrides(fs *pflag.FlagSet, cfg *RunConfig) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}
	set("resume-from", func() (e error) { cfg.Run.ResumeFrom, e = fs.GetString("resume-from"); return })
	set("total-batch", func() (e error) { cfg.Train.TotalBatch, e = fs.GetInt64("total-batch"); return })
	set("batch-size", func() (e error) { cfg.Train.BatchSize, e = fs.GetInt64("batch-size"); return })
	set("num-iter", func() (e error) { cfg.Train.NumIter, e = fs.GetInt64("num-iter"); return })
	set("lr-steps", func() (e error) { cfg.Train.LRSteps, e = fs.GetFloat64Slice("lr-steps"); return })
	set("lr-trigger", func() (e error) { cfg.Train.LRTrigger, e = fs.GetString("lr-trigger"); return })
	set("eval-freq", func() (e error) { cfg.Train.EvalFrequency, e = fs.GetInt64("eval-freq"); return })
	set("log-dir", func() (e error) { cfg.Run.LogDir, e = fs.GetString("log-dir"); return })
	set("seed", func() (e error) { cfg.Run.Seed, e = fs.GetInt64("seed"); return })
	set("trace", func() (e error) { cfg.Run.Trace, e = fs.GetString("trace"); return })
	return err
}

// resolveRunConfig loads --config (or the defaults) and applies overrides.
func resolveRunConfig(fs *pflag.FlagSet) (RunConfig, error) {
	cfg := DefaultRunConfig()
	path, err := fs.GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if cfg, err = LoadRunConfig(path); err != nil {
			return cfg, err
		}
	}
	if err := applyFlagOverrides(fs, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
