package net

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/GoSGDR/internal/loss"
	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// LinearModel is y = w.x + b. Weights and bias live in separate parameter
// groups so that schedules can treat them differently.
type LinearModel struct {
	Weights *opt.Param
	Bias    *opt.Param
}

// NewLinearModel creates a zero-initialised model over n features.
func NewLinearModel(n int) *LinearModel {
	return &LinearModel{
		Weights: &opt.Param{Data: make([]float64, n), Grad: make([]float64, n)},
		Bias:    &opt.Param{Data: make([]float64, 1), Grad: make([]float64, 1)},
	}
}

// Groups returns the weight group followed by the bias group. Weight decay
// only applies to the weights.
func (m *LinearModel) Groups(lr, momentum, weightDecay float64) []*opt.ParamGroup {
	return []*opt.ParamGroup{
		{Params: []*opt.Param{m.Weights}, LearningRate: lr, Momentum: momentum, WeightDecay: weightDecay},
		{Params: []*opt.Param{m.Bias}, LearningRate: lr, Momentum: momentum},
	}
}

// Predict returns the model output for x.
func (m *LinearModel) Predict(x []float64) float64 {
	return floats.Dot(m.Weights.Data, x) + m.Bias.Data[0]
}

// LinearTrainer fits a LinearModel by mini-batch SGD.
type LinearTrainer struct {
	Model     *LinearModel
	Optimizer *opt.SGD
	// Loss is the training objective. Nil means MSE.
	Loss  loss.Loss
	Train *Dataset
	// Val is used by EvalEpoch; Train is used when it is empty.
	Val       *Dataset
	BatchSize int

	preds, grads []float64
}

// NewLinearTrainer validates the datasets against the model.
func NewLinearTrainer(m *LinearModel, o *opt.SGD, train, val *Dataset, batchSize int) (*LinearTrainer, error) {
	if train == nil || train.Len() == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if train.Features() != len(m.Weights.Data) {
		return nil, fmt.Errorf("dataset has %d features, model expects %d", train.Features(), len(m.Weights.Data))
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", batchSize)
	}
	return &LinearTrainer{
		Model:     m,
		Optimizer: o,
		Loss:      loss.MSE{},
		Train:     train,
		Val:       val,
		BatchSize: batchSize,
		preds:     make([]float64, batchSize),
		grads:     make([]float64, batchSize),
	}, nil
}

// BatchesPerEpoch returns the number of batches covering the training set.
func (t *LinearTrainer) BatchesPerEpoch() int { return t.Train.Batches(t.BatchSize) }

// TrainBatch takes one SGD step on the batch and returns its loss before the
// step.
func (t *LinearTrainer) TrainBatch(epoch, batch int) ([]float64, error) {
	start := (batch % t.BatchesPerEpoch()) * t.BatchSize
	end := min(start+t.BatchSize, t.Train.Len())

	n := end - start
	preds, grads := t.preds[:n], t.grads[:n]
	labels := t.Train.Labels[start:end]
	for i := range preds {
		preds[i] = t.Model.Predict(t.Train.Samples[start+i])
	}
	lossFn := t.Loss
	if lossFn == nil {
		lossFn = loss.MSE{}
	}
	l := lossFn.Forward(preds, labels)
	lossFn.Backward(preds, labels, grads)

	t.Optimizer.ZeroGrad()
	wGrad, bGrad := t.Model.Weights.Grad, t.Model.Bias.Grad
	for i, g := range grads {
		floats.AddScaled(wGrad, g, t.Train.Samples[start+i])
		bGrad[0] += g
	}
	t.Optimizer.Step()
	return []float64{l}, nil
}

// EvalEpoch returns the mean squared error and the R² score.
func (t *LinearTrainer) EvalEpoch(epoch int) ([]float64, error) {
	d := t.Val
	if d == nil || d.Len() == 0 {
		d = t.Train
	}
	mse, r2 := t.Evaluate(d)
	return []float64{mse, r2}, nil
}

// Evaluate returns the mean squared error and the R² score on d.
func (t *LinearTrainer) Evaluate(d *Dataset) (mse, r2 float64) {
	mean := stat.Mean(d.Labels, nil)
	var res, tot float64
	for i, x := range d.Samples {
		diff := t.Model.Predict(x) - d.Labels[i]
		res += diff * diff
		dev := d.Labels[i] - mean
		tot += dev * dev
	}
	mse = res / float64(d.Len())
	if tot == 0 {
		return mse, 0
	}
	return mse, 1 - res/tot
}
