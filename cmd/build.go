package cmd

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/legal-ner/ner-adapt/adapt"
	"github.com/legal-ner/ner-adapt/adapt/checkpoint"
	"github.com/legal-ner/ner-adapt/adapt/data"

	_ "github.com/legal-ner/ner-adapt/adapt/model" // registers adapt.NewClassifierFunc
)

// splitSpec describes one JSONL split to load.
type splitSpec struct {
	name    string
	path    string
	labels  *data.LabelSet
	shuffle bool
}

// labelSets resolves the source and target label sets. Both domains share the
// classifier's output layer, so they must have the same number of classes.
func labelSets(cfg RunConfig) (*data.LabelSet, *data.LabelSet, error) {
	src, err := data.LabelSetByName(cfg.Dataset.SourceLabels)
	if err != nil {
		return nil, nil, err
	}
	tgt, err := data.LabelSetByName(cfg.Dataset.TargetLabels)
	if err != nil {
		return nil, nil, err
	}
	if src.Len() != tgt.Len() {
		return nil, nil, fmt.Errorf("label sets %q (%d classes) and %q (%d classes) differ in size",
			src.Name, src.Len(), tgt.Name, tgt.Len())
	}
	return src, tgt, nil
}

func splitSpecs(cfg RunConfig, src, tgt *data.LabelSet) []splitSpec {
	return []splitSpec{
		{name: "source", path: cfg.Dataset.SourceTrain, labels: src, shuffle: cfg.Dataset.Shuffle},
		{name: "target", path: cfg.Dataset.TargetTrain, labels: tgt, shuffle: cfg.Dataset.Shuffle},
		{name: "validation", path: cfg.Dataset.Validation, labels: tgt},
	}
}

// loadSplit reads one split into a fixed-order or per-pass shuffled dataset.
func loadSplit(cfg RunConfig, spec splitSpec, rng *adapt.PartitionedRNG) (*data.Dataset, error) {
	sentences, err := data.LoadJSONL(spec.path, spec.labels, cfg.Dataset.NumFeatures)
	if err != nil {
		return nil, fmt.Errorf("%s split: %w", spec.name, err)
	}
	var shuffle *rand.Rand
	if spec.shuffle {
		shuffle = rng.ForSubsystem(adapt.SubsystemShuffle(spec.name))
	}
	ds, err := data.NewDataset(sentences, int(cfg.Train.BatchSize), cfg.Dataset.NumFeatures, shuffle)
	if err != nil {
		return nil, fmt.Errorf("%s split: %w", spec.name, err)
	}
	return ds, nil
}

// loadTrainingData loads all three splits and wraps them for prefetching.
// It returns the classifier's class count.
func loadTrainingData(cfg RunConfig, rng *adapt.PartitionedRNG) (adapt.TrainingData, int, error) {
	src, tgt, err := labelSets(cfg)
	if err != nil {
		return adapt.TrainingData{}, 0, err
	}
	loaded := make([]adapt.Dataset, 0, 3)
	for _, spec := range splitSpecs(cfg, src, tgt) {
		ds, err := loadSplit(cfg, spec, rng)
		if err != nil {
			return adapt.TrainingData{}, 0, err
		}
		logrus.Infof("Loaded %s split: %d sentences, %d batches", spec.name, ds.Sentences(), ds.Len())
		loaded = append(loaded, data.Prefetch(ds, cfg.Dataset.Prefetch))
	}
	return adapt.TrainingData{Source: loaded[0], Target: loaded[1], Validation: loaded[2]}, src.Len(), nil
}

// buildClassifier creates the configured variant and, if resumeFrom is set,
// restores its state. The returned envelope is nil for a fresh classifier.
func buildClassifier(cfg RunConfig, numClasses int, resumeFrom string) (adapt.Classifier, *checkpoint.Envelope, error) {
	clf, err := adapt.NewClassifier(cfg.ClassifierConfig(numClasses))
	if err != nil {
		return nil, nil, err
	}
	if resumeFrom == "" {
		return clf, nil, nil
	}
	env, err := adapt.RestoreClassifier(clf, resumeFrom)
	if err != nil {
		return nil, nil, err
	}
	return clf, env, nil
}
