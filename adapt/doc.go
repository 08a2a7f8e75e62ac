// Package adapt provides the iteration-based training orchestrator for
// domain-adaptive NER fine-tuning.
//
// # Reading Guide
//
// Start with these files to understand the training kernel:
//   - iteration.go: raw micro-batch counter vs. effective (accumulated) iteration
//   - feeder.go: the dual-stream feeder that hides end-of-pass restarts
//   - trainer.go: the tick loop (accumulate, step, decay, validate, checkpoint)
//
// # Architecture
//
// The adapt package defines interfaces and the control loop; collaborators live
// in sub-packages:
//   - adapt/model/: classifier variants ("softmax", "mmd")
//   - adapt/data/: JSONL datasets, BIO label sets, prefetching passes
//   - adapt/checkpoint/: checkpoint envelope and rotating on-disk store
//   - adapt/trace/: training event recording
//
// adapt/model registers its constructor via an init() function that sets the
// package-level factory variable NewClassifierFunc.
//
// # Key Interfaces
//
//   - Classifier: forward/backward/step over a source and a target micro-batch
//   - Dataset and Pass: a restartable sequence of micro-batches with an explicit
//     end-of-pass signal
package adapt
