// Package model provides classifier implementations for the adapt package.
// The Classifier interface is defined in adapt/ (parent package). Both
// variants share a one-hidden-layer tanh network trained with SGD:
//   - softmax: token-level cross-entropy on the source batch only
//   - mmd: cross-entropy plus a linear-kernel maximum mean discrepancy penalty
//     pulling the mean hidden features of source and target batches together
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/legal-ner/ner-adapt/adapt"
)

var (
	errNoLoss    = errors.New("backward called without a pending loss")
	errEvalMode  = errors.New("forward called in eval mode; use Predict")
	errFeatures  = errors.New("output features were not produced by this network")
	errDimsState = errors.New("checkpoint dimensions do not match the network")
)

// activations caches one forward pass for backward.
type activations struct {
	x *mat.Dense // inputs
	h *mat.Dense // tanh hidden features
}

// features is carried in adapt.Output.Features between Forward and ComputeLoss.
type features struct {
	source activations
	target *activations // nil for the softmax variant
}

// pendingGrad is what ComputeLoss leaves for Backward.
type pendingGrad struct {
	feat    *features
	dLogits *mat.Dense // dL/dlogits for source rows
	dMean   []float64  // dPenalty/dmean(h_s); nil without a penalty
}

// Network is a two-layer token classifier: logits = tanh(x W1 + b1) W2 + b2.
type Network struct {
	variant   string
	w1, w2    *mat.Dense
	b1, b2    []float64
	gw1, gw2  *mat.Dense
	gb1, gb2  []float64
	calls     int // Backward calls accumulated since ZeroGrad
	lr        float64
	lrDecay   float64
	mmdWeight float64
	training  bool
	pending   *pendingGrad
}

// NewNetwork initializes weights from rng with 1/sqrt(fan-in) scaling.
func NewNetwork(cfg adapt.ClassifierConfig, rng *rand.Rand) *Network {
	n := &Network{
		variant:   cfg.Variant,
		w1:        mat.NewDense(cfg.NumFeatures, cfg.Hidden, nil),
		w2:        mat.NewDense(cfg.Hidden, cfg.NumClasses, nil),
		b1:        make([]float64, cfg.Hidden),
		b2:        make([]float64, cfg.NumClasses),
		gw1:       mat.NewDense(cfg.NumFeatures, cfg.Hidden, nil),
		gw2:       mat.NewDense(cfg.Hidden, cfg.NumClasses, nil),
		gb1:       make([]float64, cfg.Hidden),
		gb2:       make([]float64, cfg.NumClasses),
		lr:        cfg.LearningRate,
		lrDecay:   cfg.LRDecay,
		mmdWeight: cfg.MMDWeight,
		training:  true,
	}
	initUniform(n.w1, rng, 1/math.Sqrt(float64(cfg.NumFeatures)))
	initUniform(n.w2, rng, 1/math.Sqrt(float64(cfg.Hidden)))
	return n
}

func initUniform(m *mat.Dense, rng *rand.Rand, scale float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, (2*rng.Float64()-1)*scale)
		}
	}
}

// NumClasses returns the width of the output layer.
func (n *Network) NumClasses() int {
	return len(n.b2)
}

// LearningRate returns the current SGD learning rate.
func (n *Network) LearningRate() float64 {
	return n.lr
}

// ReduceLearningRate multiplies the learning rate by the configured decay.
func (n *Network) ReduceLearningRate() {
	n.lr *= n.lrDecay
}

// SetTraining switches between training and eval mode.
func (n *Network) SetTraining(training bool) {
	n.training = training
}

func (n *Network) checkInputs(b *adapt.Batch) error {
	if b == nil || b.Inputs == nil {
		return adapt.ErrNilBatch
	}
	r, c := b.Inputs.Dims()
	if fin, _ := n.w1.Dims(); c != fin {
		return fmt.Errorf("batch has %d features, network expects %d", c, fin)
	}
	if len(b.Labels) != 0 && len(b.Labels) != r {
		return fmt.Errorf("batch has %d rows but %d labels", r, len(b.Labels))
	}
	return nil
}

func (n *Network) hidden(x *mat.Dense) *mat.Dense {
	var h mat.Dense
	h.Mul(x, n.w1)
	r, _ := h.Dims()
	for i := 0; i < r; i++ {
		row := h.RawRowView(i)
		floats.Add(row, n.b1)
		for j, v := range row {
			row[j] = math.Tanh(v)
		}
	}
	return &h
}

func (n *Network) logits(h *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(h, n.w2)
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		floats.Add(z.RawRowView(i), n.b2)
	}
	return &z
}

// Forward computes source logits and caches activations for backward. The
// mmd variant also embeds the target batch.
func (n *Network) Forward(source, target *adapt.Batch) (*adapt.Output, error) {
	if !n.training {
		return nil, errEvalMode
	}
	if err := n.checkInputs(source); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	feat := &features{source: activations{x: source.Inputs, h: n.hidden(source.Inputs)}}
	if n.variant == "mmd" {
		if err := n.checkInputs(target); err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		feat.target = &activations{x: target.Inputs, h: n.hidden(target.Inputs)}
	}
	return &adapt.Output{Logits: n.logits(feat.source.h), Features: feat}, nil
}

// Predict runs forward-only inference.
func (n *Network) Predict(b *adapt.Batch) (*mat.Dense, error) {
	if err := n.checkInputs(b); err != nil {
		return nil, err
	}
	return n.logits(n.hidden(b.Inputs)), nil
}

// Embed returns the hidden features of b.
func (n *Network) Embed(b *adapt.Batch) (*mat.Dense, error) {
	if err := n.checkInputs(b); err != nil {
		return nil, err
	}
	return n.hidden(b.Inputs), nil
}

// ComputeLoss returns mean token cross-entropy over labelled rows (plus the
// weighted alignment penalty for mmd) and stages gradients for Backward.
func (n *Network) ComputeLoss(out *adapt.Output, labels []int) (float64, error) {
	feat, ok := out.Features.(*features)
	if !ok {
		return 0, errFeatures
	}
	r, c := out.Logits.Dims()
	if r != len(labels) {
		return 0, fmt.Errorf("%d logit rows for %d labels", r, len(labels))
	}

	labelled := 0
	for _, l := range labels {
		if l != adapt.IgnoreLabel {
			labelled++
		}
	}

	dLogits := mat.NewDense(r, c, nil)
	loss := 0.0
	if labelled > 0 {
		probs := make([]float64, c)
		for i, l := range labels {
			if l == adapt.IgnoreLabel {
				continue
			}
			if l < 0 || l >= c {
				return 0, fmt.Errorf("label %d out of range [0,%d)", l, c)
			}
			softmax(probs, out.Logits.RawRowView(i))
			loss -= math.Log(math.Max(probs[l], 1e-12))
			probs[l] -= 1
			floats.Scale(1/float64(labelled), probs)
			copy(dLogits.RawRowView(i), probs)
		}
		loss /= float64(labelled)
	}

	pg := &pendingGrad{feat: feat, dLogits: dLogits}
	if feat.target != nil && n.mmdWeight > 0 {
		diff := colMean(feat.source.h)
		floats.Sub(diff, colMean(feat.target.h))
		loss += n.mmdWeight * floats.Dot(diff, diff)
		floats.Scale(2*n.mmdWeight, diff)
		pg.dMean = diff
	}
	n.pending = pg
	return loss, nil
}

// Backward adds the staged gradients to the accumulators.
func (n *Network) Backward() error {
	pg := n.pending
	if pg == nil {
		return errNoLoss
	}
	n.pending = nil
	src := pg.feat.source

	var gw2 mat.Dense
	gw2.Mul(src.h.T(), pg.dLogits)
	n.gw2.Add(n.gw2, &gw2)
	addColSums(n.gb2, pg.dLogits, 1)

	var dh mat.Dense
	dh.Mul(pg.dLogits, n.w2.T())
	if pg.dMean != nil {
		rs, _ := src.h.Dims()
		addRowBroadcast(&dh, pg.dMean, 1/float64(rs))
	}
	n.backHidden(src, &dh)

	if pg.dMean != nil {
		rt, ht := pg.feat.target.h.Dims()
		dht := mat.NewDense(rt, ht, nil)
		addRowBroadcast(dht, pg.dMean, -1/float64(rt))
		n.backHidden(*pg.feat.target, dht)
	}
	n.calls++
	return nil
}

// backHidden propagates dL/dh through tanh into W1 and b1.
func (n *Network) backHidden(a activations, dh *mat.Dense) {
	var dz mat.Dense
	dz.Apply(func(i, j int, v float64) float64 {
		h := a.h.At(i, j)
		return v * (1 - h*h)
	}, dh)
	var gw1 mat.Dense
	gw1.Mul(a.x.T(), &dz)
	n.gw1.Add(n.gw1, &gw1)
	addColSums(n.gb1, &dz, 1)
}

// Step applies the mean of the accumulated gradients. A step with nothing
// accumulated is a no-op.
func (n *Network) Step() error {
	if n.calls == 0 {
		return nil
	}
	scale := -n.lr / float64(n.calls)
	n.w1.AddScaled(n.w1, scale, n.gw1)
	n.w2.AddScaled(n.w2, scale, n.gw2)
	floats.AddScaled(n.b1, scale, n.gb1)
	floats.AddScaled(n.b2, scale, n.gb2)
	return nil
}

// ZeroGrad clears the gradient accumulators.
func (n *Network) ZeroGrad() {
	n.gw1.Zero()
	n.gw2.Zero()
	zero(n.gb1)
	zero(n.gb2)
	n.calls = 0
	n.pending = nil
}

// state is the JSON form of a Network.
type state struct {
	Variant      string    `json:"variant"`
	NumFeatures  int       `json:"num_features"`
	Hidden       int       `json:"hidden"`
	NumClasses   int       `json:"num_classes"`
	LearningRate float64   `json:"learning_rate"`
	LRDecay      float64   `json:"lr_decay"`
	MMDWeight    float64   `json:"mmd_weight"`
	W1           []float64 `json:"w1"`
	B1           []float64 `json:"b1"`
	W2           []float64 `json:"w2"`
	B2           []float64 `json:"b2"`
}

// MarshalState serializes weights and the current learning rate.
func (n *Network) MarshalState() ([]byte, error) {
	fin, hid := n.w1.Dims()
	return json.Marshal(state{
		Variant:      n.variant,
		NumFeatures:  fin,
		Hidden:       hid,
		NumClasses:   n.NumClasses(),
		LearningRate: n.lr,
		LRDecay:      n.lrDecay,
		MMDWeight:    n.mmdWeight,
		W1:           append([]float64(nil), n.w1.RawMatrix().Data...),
		B1:           append([]float64(nil), n.b1...),
		W2:           append([]float64(nil), n.w2.RawMatrix().Data...),
		B2:           append([]float64(nil), n.b2...),
	})
}

// UnmarshalState restores weights and learning rate. The variant may differ
// (a softmax checkpoint can seed an mmd run) but dimensions must match.
func (n *Network) UnmarshalState(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding network state: %w", err)
	}
	fin, hid := n.w1.Dims()
	if s.NumFeatures != fin || s.Hidden != hid || s.NumClasses != n.NumClasses() ||
		len(s.W1) != fin*hid || len(s.W2) != hid*n.NumClasses() ||
		len(s.B1) != hid || len(s.B2) != n.NumClasses() {
		return fmt.Errorf("%w: got features=%d hidden=%d classes=%d", errDimsState, s.NumFeatures, s.Hidden, s.NumClasses)
	}
	n.w1 = mat.NewDense(fin, hid, s.W1)
	n.w2 = mat.NewDense(hid, n.NumClasses(), s.W2)
	copy(n.b1, s.B1)
	copy(n.b2, s.B2)
	if s.LearningRate > 0 {
		n.lr = s.LearningRate
	}
	n.ZeroGrad()
	return nil
}

func softmax(dst, logits []float64) {
	m := floats.Max(logits)
	for i, v := range logits {
		dst[i] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(dst), dst)
}

func colMean(m *mat.Dense) []float64 {
	r, c := m.Dims()
	mean := make([]float64, c)
	addColSums(mean, m, 1/float64(r))
	return mean
}

// addColSums adds scale * column sums of m to dst.
func addColSums(dst []float64, m *mat.Dense, scale float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.AddScaled(dst, scale, m.RawRowView(i))
	}
}

// addRowBroadcast adds scale*v to every row of m.
func addRowBroadcast(m *mat.Dense, v []float64, scale float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.AddScaled(m.RawRowView(i), scale, v)
	}
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
