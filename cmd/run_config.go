package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/legal-ner/ner-adapt/adapt"
	"github.com/legal-ner/ner-adapt/adapt/data"
	"github.com/legal-ner/ner-adapt/adapt/trace"
)

// RunSection holds per-run bookkeeping.
type RunSection struct {
	LogDir          string `yaml:"log_dir"`
	Shift           string `yaml:"shift"` // "<source>-<target>", names the accuracy log
	Seed            int64  `yaml:"seed"`
	Trace           string `yaml:"trace"`
	ResumeFrom      string `yaml:"resume_from"`
	KeepCheckpoints int    `yaml:"keep_checkpoints"`
}

// ModelSection selects and sizes the classifier.
type ModelSection struct {
	Variant      string  `yaml:"variant"`
	Hidden       int     `yaml:"hidden"`
	LearningRate float64 `yaml:"learning_rate"`
	LRDecay      float64 `yaml:"lr_decay"`
	MMDWeight    float64 `yaml:"mmd_weight"`
}

// DatasetSection locates the three JSONL splits and their label sets.
type DatasetSection struct {
	NumFeatures  int    `yaml:"num_features"`
	SourceLabels string `yaml:"source_labels"`
	TargetLabels string `yaml:"target_labels"`
	SourceTrain  string `yaml:"source_train"`
	TargetTrain  string `yaml:"target_train"`
	Validation   string `yaml:"validation"` // target-domain validation split
	Shuffle      bool   `yaml:"shuffle"`
	Prefetch     int    `yaml:"prefetch"`
}

// TrainSection holds the iteration-based training schedule. All iteration
// values count effective iterations.
type TrainSection struct {
	TotalBatch    int64     `yaml:"total_batch"`
	BatchSize     int64     `yaml:"batch_size"`
	NumIter       int64     `yaml:"num_iter"`
	LRSteps       []float64 `yaml:"lr_steps"`
	LRTrigger     string    `yaml:"lr_trigger"`
	EvalFrequency int64     `yaml:"eval_freq"`
}

// RunConfig is the full run YAML. Every section must be listed to satisfy
// KnownFields(true) strict parsing.
type RunConfig struct {
	Run     RunSection     `yaml:"run"`
	Model   ModelSection   `yaml:"model"`
	Dataset DatasetSection `yaml:"dataset"`
	Train   TrainSection   `yaml:"train"`
}

// DefaultRunConfig mirrors the defaults of the legal -> defense experiments.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Run: RunSection{
			LogDir:          "logs",
			Shift:           "legal-defense",
			Seed:            42,
			Trace:           string(trace.TraceLevelNone),
			KeepCheckpoints: adapt.DefaultKeepCheckpoints,
		},
		Model: ModelSection{
			Variant:      "mmd",
			Hidden:       64,
			LearningRate: 0.01,
			LRDecay:      0.1,
			MMDWeight:    0.5,
		},
		Dataset: DatasetSection{
			NumFeatures:  32,
			SourceLabels: "legal",
			TargetLabels: "defense",
			Shuffle:      true,
			Prefetch:     2,
		},
		Train: TrainSection{
			TotalBatch:    32,
			BatchSize:     8,
			NumIter:       1000,
			LRSteps:       []float64{600, 800},
			LRTrigger:     string(adapt.LRTriggerExact),
			EvalFrequency: 100,
		},
	}
}

// LoadRunConfig decodes path over DefaultRunConfig. Unknown keys are errors.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}

// TrainingConfig projects the run config onto the training loop's config.
func (c RunConfig) TrainingConfig(runID string) adapt.TrainingConfig {
	return adapt.TrainingConfig{
		TotalBatch:      c.Train.TotalBatch,
		MicroBatchSize:  c.Train.BatchSize,
		NumIterations:   c.Train.NumIter,
		LRSteps:         c.Train.LRSteps,
		LRTrigger:       adapt.LRTrigger(c.Train.LRTrigger),
		EvalFrequency:   c.Train.EvalFrequency,
		ResumeFrom:      c.Run.ResumeFrom,
		KeepCheckpoints: c.Run.KeepCheckpoints,
		LogDir:          c.Run.LogDir,
		Shift:           c.Run.Shift,
		RunID:           runID,
		Variant:         c.Model.Variant,
	}
}

// ClassifierConfig projects the run config onto the classifier factory's
// config. numClasses comes from the source label set.
func (c RunConfig) ClassifierConfig(numClasses int) adapt.ClassifierConfig {
	return adapt.ClassifierConfig{
		Variant:      c.Model.Variant,
		NumFeatures:  c.Dataset.NumFeatures,
		NumClasses:   numClasses,
		Hidden:       c.Model.Hidden,
		LearningRate: c.Model.LearningRate,
		LRDecay:      c.Model.LRDecay,
		MMDWeight:    c.Model.MMDWeight,
		Seed:         c.Run.Seed,
	}
}

// Validate checks the sections the core packages do not check themselves.
func (c RunConfig) Validate() error {
	if err := validateShift(c.Run.Shift); err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(c.Run.Trace) {
		return fmt.Errorf("unknown trace level %q; valid: none, events", c.Run.Trace)
	}
	if !data.ValidLabelSets[c.Dataset.SourceLabels] {
		return fmt.Errorf("unknown source label set %q", c.Dataset.SourceLabels)
	}
	if !data.ValidLabelSets[c.Dataset.TargetLabels] {
		return fmt.Errorf("unknown target label set %q", c.Dataset.TargetLabels)
	}
	if c.Dataset.Prefetch < 0 {
		return fmt.Errorf("prefetch must be >= 0, got %d", c.Dataset.Prefetch)
	}
	for _, split := range []struct{ name, path string }{
		{"source_train", c.Dataset.SourceTrain},
		{"target_train", c.Dataset.TargetTrain},
		{"validation", c.Dataset.Validation},
	} {
		if split.path == "" {
			return fmt.Errorf("dataset.%s is required", split.name)
		}
	}
	return nil
}

// validateShift requires "<source>-<target>" with both names non-empty, since
// the accuracy log is named after the first and last dash-separated parts.
func validateShift(shift string) error {
	parts := strings.Split(shift, "-")
	if len(parts) < 2 || parts[0] == "" || parts[len(parts)-1] == "" {
		return fmt.Errorf("run.shift must have the form <source>-<target>, got %q", shift)
	}
	return nil
}
