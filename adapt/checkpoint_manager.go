package adapt

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/legal-ner/ner-adapt/adapt/checkpoint"
	"github.com/legal-ner/ner-adapt/adapt/trace"
)

// BestRecord is the best top-1 score seen in the run and where it was seen.
// Only the CheckpointManager mutates it, and only on strict improvement.
type BestRecord struct {
	Iteration int64
	Score     float64
}

// Outcome describes one validation-and-checkpoint event.
type Outcome struct {
	Result         *ValidationResult
	Improved       bool
	CheckpointPath string // empty when persistence failed
	SaveErr        error  // logged, never returned
}

// CheckpointManager validates on schedule, tracks the best score and persists
// a checkpoint after every validation.
type CheckpointManager struct {
	validator *Validator
	store     *checkpoint.Store
	clf       Classifier
	evalFreq  int64
	runID     string
	variant   string
	best      BestRecord
	trace     *trace.TrainingTrace
}

// NewCheckpointManager wires a validator to a checkpoint store.
func NewCheckpointManager(cfg TrainingConfig, clf Classifier, v *Validator, store *checkpoint.Store, tr *trace.TrainingTrace) *CheckpointManager {
	return &CheckpointManager{
		validator: v,
		store:     store,
		clf:       clf,
		evalFreq:  cfg.EvalFrequency,
		runID:     cfg.RunID,
		variant:   cfg.Variant,
		trace:     tr,
	}
}

// Best returns the current best record.
func (m *CheckpointManager) Best() BestRecord {
	return m.best
}

// Restore seeds the best record from a resumed checkpoint.
func (m *CheckpointManager) Restore(best BestRecord) {
	m.best = best
}

// Due reports whether a validation event belongs to this tick: the
// accumulation window must be complete and the effective iteration a multiple
// of the eval frequency.
func (m *CheckpointManager) Due(it Iteration) bool {
	return it.IsWhole() && it.Whole()%m.evalFreq == 0
}

// MaybeValidateAndCheckpoint returns (nil, nil) when no validation is due.
// Validation errors are fatal; persistence errors are only logged.
func (m *CheckpointManager) MaybeValidateAndCheckpoint(it Iteration) (*Outcome, error) {
	if !m.Due(it) {
		return nil, nil
	}
	res, err := m.validator.Evaluate(it.Whole())
	if err != nil {
		return nil, err
	}
	out := &Outcome{Result: res, Improved: m.Consider(res)}
	out.CheckpointPath, out.SaveErr = m.persist(res)
	return out, nil
}

// Consider compares res with the best record and updates it on strict
// improvement.
func (m *CheckpointManager) Consider(res *ValidationResult) bool {
	improved := res.Top1 > m.best.Score
	if improved {
		m.best = BestRecord{Iteration: res.Iteration, Score: res.Top1}
		logrus.Infof("New best accuracy %.2f%% at iteration %d", res.Top1, res.Iteration)
	} else {
		logrus.Infof("No improvement: %.2f%% (best %.2f%% at iteration %d)", res.Top1, m.best.Score, m.best.Iteration)
	}
	m.trace.RecordValidation(trace.ValidationRecord{
		Iteration: res.Iteration,
		Top1:      res.Top1,
		Top5:      res.Top5,
		ClassMean: res.ClassMean,
		Improved:  improved,
	})
	return improved
}

func (m *CheckpointManager) persist(res *ValidationResult) (string, error) {
	rec := trace.CheckpointRecord{Iteration: res.Iteration, Score: res.Top1}
	path, err := m.save(res)
	switch {
	case err != nil && path == "":
		logrus.Warnf("checkpoint at iteration %d not saved: %v", res.Iteration, err)
		rec.Err = err.Error()
	case err != nil:
		// written, but rotation failed; the checkpoint itself is usable
		logrus.Warnf("checkpoint rotation: %v", err)
		rec.Path = path
	default:
		logrus.Infof("Saved checkpoint %s", path)
		rec.Path = path
	}
	m.trace.RecordCheckpoint(rec)
	return path, err
}

func (m *CheckpointManager) save(res *ValidationResult) (string, error) {
	state, err := m.clf.MarshalState()
	if err != nil {
		return "", err
	}
	return m.store.Save(&checkpoint.Envelope{
		RunID:         m.runID,
		Variant:       m.variant,
		Iteration:     res.Iteration,
		Score:         res.Top1,
		BestIteration: m.best.Iteration,
		BestScore:     m.best.Score,
		LearningRate:  m.clf.LearningRate(),
		Model:         state,
	})
}

// RestoreClassifier loads the checkpoint at path into clf and returns its
// envelope (iteration, best record).
func RestoreClassifier(clf Classifier, path string) (*checkpoint.Envelope, error) {
	env, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	if err := clf.UnmarshalState(env.Model); err != nil {
		return nil, fmt.Errorf("restoring %s: %w", path, err)
	}
	return env, nil
}
