package adapt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Output is what a training forward pass produces. Features is opaque to the
// core and is handed back to the classifier's ComputeLoss.
type Output struct {
	Logits   *mat.Dense
	Features any
}

// Classifier is the model contract the orchestrator drives. Gradients from
// successive Backward calls accumulate until ZeroGrad.
type Classifier interface {
	// Forward runs the training forward pass; logits are for the source rows.
	Forward(source, target *Batch) (*Output, error)
	// Predict runs forward-only inference on a single batch.
	Predict(b *Batch) (*mat.Dense, error)
	ComputeLoss(out *Output, labels []int) (float64, error)
	Backward() error
	Step() error
	ZeroGrad()
	SetTraining(training bool)
	ReduceLearningRate()
	LearningRate() float64
	NumClasses() int
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Embedder is implemented by classifiers that can expose their hidden features.
type Embedder interface {
	Embed(b *Batch) (*mat.Dense, error)
}

// ClassifierConfig selects and parameterizes a classifier variant.
type ClassifierConfig struct {
	Variant      string  // "softmax" or "mmd"
	NumFeatures  int     // input feature width per token
	NumClasses   int     // output label count
	Hidden       int     // hidden layer width
	LearningRate float64 // initial SGD learning rate
	LRDecay      float64 // multiplicative factor applied by ReduceLearningRate
	MMDWeight    float64 // weight of the domain alignment penalty (mmd only)
	Seed         int64   // weight initialization seed
}

// ValidClassifierVariants is the closed set of classifier variants.
var ValidClassifierVariants = map[string]bool{"softmax": true, "mmd": true}

// NewClassifierFunc is set by adapt/model's init(). Importing adapt/model
// (directly or blank) is required before calling NewClassifier.
var NewClassifierFunc func(cfg ClassifierConfig) (Classifier, error)

// Validate checks variant name and dimensions.
func (c ClassifierConfig) Validate() error {
	if !ValidClassifierVariants[c.Variant] {
		return fmt.Errorf("unknown classifier variant %q; valid: softmax, mmd", c.Variant)
	}
	if c.NumFeatures <= 0 || c.NumClasses <= 0 || c.Hidden <= 0 {
		return fmt.Errorf("classifier dimensions must be positive: features=%d classes=%d hidden=%d",
			c.NumFeatures, c.NumClasses, c.Hidden)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate)
	}
	if c.LRDecay <= 0 || c.LRDecay > 1 {
		return fmt.Errorf("lr_decay must be in (0, 1], got %v", c.LRDecay)
	}
	if c.MMDWeight < 0 {
		return fmt.Errorf("mmd_weight must be >= 0, got %v", c.MMDWeight)
	}
	return nil
}

// NewClassifier builds the configured variant.
func NewClassifier(cfg ClassifierConfig) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if NewClassifierFunc == nil {
		return nil, fmt.Errorf("no classifier implementation registered; import adapt/model")
	}
	return NewClassifierFunc(cfg)
}
