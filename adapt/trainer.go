// adapt/trainer.go
package adapt

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/legal-ner/ner-adapt/adapt/checkpoint"
	"github.com/legal-ner/ner-adapt/adapt/trace"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseResuming Phase = "resuming"
	PhaseRunning  Phase = "running"
	PhaseDone     Phase = "done"
)

// TrainingData groups the three datasets the trainer consumes.
type TrainingData struct {
	Source     Dataset // source-domain training stream
	Target     Dataset // target-domain training stream
	Validation Dataset
}

// Trainer is the iteration-based orchestrator. Each tick consumes exactly one
// (source, target) micro-batch pair; at most one optimizer step and at most
// one validation happen per tick, the latter only on ticks with a step.
type Trainer struct {
	cfg     TrainingConfig
	clf     Classifier
	feeder  *Feeder
	state   *IterationState
	acc     Accumulator
	sched   *LRScheduler
	ckpt    *CheckpointManager
	trace   *trace.TrainingTrace
	window  *AccuracyMeter // training accuracy since the last validation
	phase   Phase
	summary RunSummary
}

// NewTrainer validates the configuration and assembles the components.
// tr may be nil.
func NewTrainer(cfg TrainingConfig, clf Classifier, data TrainingData, tr *trace.TrainingTrace) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clf == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrInvalidConfig)
	}
	if data.Source == nil || data.Target == nil {
		return nil, fmt.Errorf("%w: source and target datasets are required", ErrInvalidConfig)
	}
	v, err := NewValidator(clf, data.Validation, cfg.NumIterations, cfg.AccuracyLogPath())
	if err != nil {
		return nil, err
	}
	store := checkpoint.NewStore(cfg.CheckpointDir(), cfg.keepCheckpoints())
	return &Trainer{
		cfg:     cfg,
		clf:     clf,
		feeder:  NewFeeder(data.Source, data.Target),
		state:   NewIterationState(cfg.AccumulationRatio(), 0),
		sched:   NewLRScheduler(cfg.LRSteps, cfg.LRTrigger),
		ckpt:    NewCheckpointManager(cfg, clf, v, store, tr),
		trace:   tr,
		window:  NewAccuracyMeter(clf.NumClasses()),
		phase:   PhaseInit,
		summary: RunSummary{RunID: cfg.RunID},
	}, nil
}

// Phase returns the current lifecycle state.
func (t *Trainer) Phase() Phase {
	return t.phase
}

// Iteration returns the current effective iteration.
func (t *Trainer) Iteration() Iteration {
	return t.state.Effective()
}

// Best returns the best validation record so far.
func (t *Trainer) Best() BestRecord {
	return t.ckpt.Best()
}

// Run trains until the effective iteration reaches NumIterations. ctx is
// checked between ticks; a started tick always runs to completion.
func (t *Trainer) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	defer t.feeder.Close()

	if t.cfg.ResumeFrom != "" {
		t.phase = PhaseResuming
		if err := t.resume(t.cfg.ResumeFrom); err != nil {
			return nil, err
		}
	}
	t.summary.StartIteration = t.state.Effective().Whole()

	t.phase = PhaseRunning
	t.clf.SetTraining(true)
	t.clf.ZeroGrad()

	lastRaw := t.cfg.NumIterations * t.cfg.AccumulationRatio()
	logrus.Infof("Training from iteration %d to %d (accumulation ratio %d, %d micro-batches)",
		t.summary.StartIteration, t.cfg.NumIterations, t.cfg.AccumulationRatio(), max(0, lastRaw-t.state.Raw()))

	for t.state.Raw() < lastRaw {
		if err := ctx.Err(); err != nil {
			return t.finish(start), fmt.Errorf("training interrupted at iteration %s: %w", t.state.Effective(), err)
		}
		if err := t.tick(); err != nil {
			return t.finish(start), fmt.Errorf("iteration %s: %w", t.state.Effective(), err)
		}
	}

	t.phase = PhaseDone
	return t.finish(start), nil
}

// resume restores classifier state and bookkeeping from a checkpoint.
func (t *Trainer) resume(path string) error {
	env, err := RestoreClassifier(t.clf, path)
	if err != nil {
		return fmt.Errorf("%w: resume: %w", ErrInvalidConfig, err)
	}
	t.state = NewIterationState(t.cfg.AccumulationRatio(), env.Iteration)
	t.ckpt.Restore(BestRecord{Iteration: env.BestIteration, Score: env.BestScore})
	logrus.Infof("Resumed from %s at iteration %d (best %.2f%% at %d, lr %.3g)",
		path, env.Iteration, env.BestScore, env.BestIteration, t.clf.LearningRate())
	return nil
}

// tick consumes one micro-batch pair: accumulate, then optionally step and
// optionally validate.
func (t *Trainer) tick() error {
	prev := t.state.Effective()
	it := t.state.Advance()

	for _, point := range t.sched.Due(prev, it) {
		t.clf.ReduceLearningRate()
		t.summary.Decays++
		logrus.Infof("Learning rate reduced to %.3g at iteration %s (decay point %v)", t.clf.LearningRate(), it, point)
		t.trace.RecordDecay(trace.DecayRecord{
			Raw:          it.Raw,
			Iteration:    it.Float64(),
			Point:        point,
			LearningRate: t.clf.LearningRate(),
		})
	}

	if err := t.accumulate(it); err != nil {
		return err
	}
	if !t.acc.IsComplete(it) {
		return nil
	}

	if err := t.clf.Step(); err != nil {
		return fmt.Errorf("optimizer step: %w", err)
	}
	t.clf.ZeroGrad()
	t.summary.OptimizerSteps++

	out, err := t.ckpt.MaybeValidateAndCheckpoint(it)
	if err != nil {
		return err
	}
	if out != nil {
		t.summary.Validations++
		t.summary.LastTop1 = out.Result.Top1
		logrus.Infof("[%d/%d] train top1 = %.2f%% val top1 = %.2f%% lr = %.3g",
			it.Whole(), t.cfg.NumIterations, t.window.Top1(), out.Result.Top1, t.clf.LearningRate())
		t.window = NewAccuracyMeter(t.clf.NumClasses())
	}
	return nil
}

// accumulate runs forward/loss/backward on the next pair without stepping.
func (t *Trainer) accumulate(it Iteration) error {
	srcRestarts, tgtRestarts := t.feeder.Restarts(StreamSource), t.feeder.Restarts(StreamTarget)
	src, tgt, err := t.feeder.NextPair()
	if err != nil {
		return err
	}
	t.recordRestarts(it, srcRestarts, tgtRestarts)

	if src == nil || tgt == nil || src.Inputs == nil || tgt.Inputs == nil {
		return ErrNilBatch
	}
	out, err := t.clf.Forward(src, tgt)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	loss, err := t.clf.ComputeLoss(out, src.Labels)
	if err != nil {
		return fmt.Errorf("loss: %w", err)
	}
	if err := t.clf.Backward(); err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	if err := t.window.Add(out.Logits, src.Labels); err != nil {
		return err
	}
	t.summary.Ticks++
	t.summary.LossSum += loss
	logrus.Debugf("[raw %d] iteration %s loss %.4f pending %d", it.Raw, it, loss, t.acc.Pending(it))
	return nil
}

func (t *Trainer) recordRestarts(it Iteration, srcBefore, tgtBefore int) {
	for _, s := range []struct {
		stream Stream
		before int
	}{{StreamSource, srcBefore}, {StreamTarget, tgtBefore}} {
		now := t.feeder.Restarts(s.stream)
		if now == s.before {
			continue
		}
		logrus.Debugf("%s stream restarted (pass %d) at raw %d", s.stream, now+1, it.Raw)
		t.trace.RecordRestart(trace.RestartRecord{Stream: string(s.stream), Raw: it.Raw, Restarts: now})
	}
}

func (t *Trainer) finish(start time.Time) *RunSummary {
	s := t.summary
	s.FinalIteration = t.state.Effective()
	s.SourceRestarts = t.feeder.Restarts(StreamSource)
	s.TargetRestarts = t.feeder.Restarts(StreamTarget)
	s.Best = t.ckpt.Best()
	s.LearningRate = t.clf.LearningRate()
	s.Elapsed = time.Since(start)
	return &s
}
