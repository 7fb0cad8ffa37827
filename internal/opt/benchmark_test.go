// Package opt provides benchmarks for optimizers and schedules.
package opt

import (
	"math/rand"
	"testing"
)

// fillRandom fills a slice with random values.
func fillRandom(slice []float64) {
	for i := range slice {
		slice[i] = rand.Float64()
	}
}

func newBenchSGD(groups, size int) *SGD {
	gs := make([]*ParamGroup, groups)
	for i := range gs {
		p := &Param{Data: make([]float64, size), Grad: make([]float64, size)}
		fillRandom(p.Data)
		fillRandom(p.Grad)
		gs[i] = &ParamGroup{Params: []*Param{p}, LearningRate: 0.01, Momentum: 0.9, WeightDecay: 1e-4}
	}
	return NewSGD(gs...)
}

// BenchmarkSGDStep benchmarks SGD Step method.
func BenchmarkSGDStep(b *testing.B) {
	sgd := newBenchSGD(3, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.Step()
	}
}

// BenchmarkCosineBatchEnd benchmarks the per-batch cost of a cosine schedule.
func BenchmarkCosineBatchEnd(b *testing.B) {
	sgd := newBenchSGD(3, 1)
	c, err := NewCosineAnnealing(sgd, CosineConfig{Steps: 1000, CycleMult: 2})
	if err != nil {
		b.Fatal(err)
	}
	c.OnTrainBegin()
	loss := []float64{0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.OnBatchEnd(loss)
	}
}

// BenchmarkWeightDecayBatch benchmarks a begin/end pair of the decay normalizer.
func BenchmarkWeightDecayBatch(b *testing.B) {
	sgd := newBenchSGD(3, 1000)
	w, err := NewWeightDecayNormalizer(sgd, WeightDecayConfig{
		BatchesPerEpoch: 1 << 30, CycleLen: 1, CycleMult: 1, Cycles: 1, Normalize: true,
	})
	if err != nil {
		b.Fatal(err)
	}
	w.OnTrainBegin()
	loss := []float64{0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.OnBatchBegin()
		w.OnBatchEnd(loss)
	}
}

// BenchmarkSmoothCurve benchmarks smoothing a long loss curve.
func BenchmarkSmoothCurve(b *testing.B) {
	vals := make([]float64, 10000)
	fillRandom(vals)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SmoothCurve(vals, 0.98)
	}
}
