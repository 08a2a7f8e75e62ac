package testutil

import (
	"encoding/json"
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/legal-ner/ner-adapt/adapt"
)

// ErrInjected is returned by FakeClassifier when a failure is scripted.
var ErrInjected = errors.New("injected failure")

// FakeClassifier implements adapt.Classifier without any learning. Predict
// reads the predicted class from column 0 of each input row (see PredBatch),
// so tests control accuracy exactly. Every call is counted.
type FakeClassifier struct {
	Classes int
	LR      float64

	Forwards   int
	Losses     int
	Backwards  int
	Steps      int
	ZeroGrads  int
	Decays     int
	Predicts   int
	Modes      []bool // SetTraining arguments in call order
	Training   bool
	StepsAtLR  map[float64]int
	FailStepAt int // fail the n-th Step call (1-based); 0 never fails
	FailState  bool

	// Backwards since the last ZeroGrad; Step records this window size.
	pendingBackwards int
	Windows          []int
}

// NewFakeClassifier creates a fake with numClasses outputs and lr 1.0.
func NewFakeClassifier(numClasses int) *FakeClassifier {
	return &FakeClassifier{Classes: numClasses, LR: 1.0, StepsAtLR: make(map[float64]int)}
}

func (f *FakeClassifier) logits(b *adapt.Batch) *mat.Dense {
	r, _ := b.Inputs.Dims()
	out := mat.NewDense(r, f.Classes, nil)
	for i := 0; i < r; i++ {
		p := int(b.Inputs.At(i, 0))
		if p >= 0 && p < f.Classes {
			out.Set(i, p, 1)
		}
	}
	return out
}

func (f *FakeClassifier) Forward(source, target *adapt.Batch) (*adapt.Output, error) {
	f.Forwards++
	return &adapt.Output{Logits: f.logits(source)}, nil
}

func (f *FakeClassifier) Predict(b *adapt.Batch) (*mat.Dense, error) {
	f.Predicts++
	return f.logits(b), nil
}

func (f *FakeClassifier) ComputeLoss(out *adapt.Output, labels []int) (float64, error) {
	f.Losses++
	return 1.0, nil
}

func (f *FakeClassifier) Backward() error {
	f.Backwards++
	f.pendingBackwards++
	return nil
}

func (f *FakeClassifier) Step() error {
	f.Steps++
	if f.FailStepAt > 0 && f.Steps == f.FailStepAt {
		return ErrInjected
	}
	f.StepsAtLR[f.LR]++
	f.Windows = append(f.Windows, f.pendingBackwards)
	return nil
}

func (f *FakeClassifier) ZeroGrad() {
	f.ZeroGrads++
	f.pendingBackwards = 0
}

func (f *FakeClassifier) SetTraining(training bool) {
	f.Training = training
	f.Modes = append(f.Modes, training)
}

func (f *FakeClassifier) ReduceLearningRate() {
	f.Decays++
	f.LR *= 0.1
}

func (f *FakeClassifier) LearningRate() float64 {
	return f.LR
}

func (f *FakeClassifier) NumClasses() int {
	return f.Classes
}

type fakeState struct {
	LR    float64 `json:"lr"`
	Steps int     `json:"steps"`
}

func (f *FakeClassifier) MarshalState() ([]byte, error) {
	if f.FailState {
		return nil, ErrInjected
	}
	return json.Marshal(fakeState{LR: f.LR, Steps: f.Steps})
}

func (f *FakeClassifier) UnmarshalState(data []byte) error {
	var s fakeState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	f.LR = s.LR
	return nil
}
