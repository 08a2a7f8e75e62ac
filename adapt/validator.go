package adapt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Validator runs one full deterministic pass over the validation dataset.
type Validator struct {
	clf           Classifier
	data          Dataset
	numIterations int64
	logPath       string // accuracy log; empty disables it
}

// NewValidator checks the validation dataset up front: an empty one is a
// configuration error, since per-class ratios cannot be computed.
func NewValidator(clf Classifier, data Dataset, numIterations int64, logPath string) (*Validator, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, ErrEmptyValidation)
	}
	return &Validator{clf: clf, data: data, numIterations: numIterations, logPath: logPath}, nil
}

// Evaluate scores the classifier at effective iteration it. The classifier is
// put in eval mode for the pass and always handed back in training mode.
// The pass ends at the dataset's end-of-pass; there is no restart.
func (v *Validator) Evaluate(it int64) (*ValidationResult, error) {
	v.clf.SetTraining(false)
	defer v.clf.SetTraining(true)

	meter := NewAccuracyMeter(v.clf.NumClasses())
	total := v.data.Len()
	every := max(1, total/5)

	pass := v.data.Iter()
	defer pass.Close()
	for i := 0; ; i++ {
		b, ok, err := pass.Next()
		if err != nil {
			return nil, fmt.Errorf("validation pass: %w", err)
		}
		if !ok {
			break
		}
		if b == nil || b.Inputs == nil {
			return nil, fmt.Errorf("validation batch %d: %w", i, ErrNilBatch)
		}
		logits, err := v.clf.Predict(b)
		if err != nil {
			return nil, fmt.Errorf("validation batch %d: %w", i, err)
		}
		if err := meter.Add(logits, b.Labels); err != nil {
			return nil, fmt.Errorf("validation batch %d: %w", i, err)
		}
		if (i+1)%every == 0 {
			logrus.Infof("[%d/%d] top1= %.3f%% top5 = %.3f%%", i+1, total, meter.Top1(), meter.TopK())
		}
	}
	if meter.Examples() == 0 {
		return nil, ErrEmptyValidation
	}

	res := meter.Result(it)
	logrus.Infof("Final accuracy: top1 = %.2f%%\ttop5 = %.2f%%", res.Top1, res.Top5)
	for _, c := range res.Classes() {
		logrus.Infof("Class %d = [%d/%d] = %.2f%%", c, res.Correct[c], res.Total[c], res.PerClass[c])
	}
	logrus.Infof("Accuracy by averaging class accuracies (same weight for each class): %.2f%%", res.ClassMean)

	v.appendAccuracyLog(res)
	return res, nil
}

// appendAccuracyLog writes "[it/num_iter]\tAcc@top1: xx.xx%". Failures are
// logged; the next validation writes independently.
func (v *Validator) appendAccuracyLog(res *ValidationResult) {
	if v.logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(v.logPath), 0755); err != nil {
		logrus.Warnf("accuracy log: %v", err)
		return
	}
	f, err := os.OpenFile(v.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Warnf("accuracy log: %v", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "[%d/%d]\tAcc@top1: %.2f%%\n", res.Iteration, v.numIterations, res.Top1); err != nil {
		logrus.Warnf("accuracy log: %v", err)
	}
}
