package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sample is one recorded training step.
type Sample struct {
	Iteration int
	LR        float64
	Momentum  float64
	Loss      float64

	// Validated is set when the step also carried a validation loss.
	Validated bool
	ValLoss   float64
	Metrics   []float64
}

// Recorder appends a Sample after every batch. The samples are ordered by
// arrival, which is also iteration order.
type Recorder struct {
	TrainingClock

	target    HyperparamTarget
	recordMom bool
	samples   []Sample
}

// NewRecorder creates a standalone recorder reading lr (and momentum when
// recordMom is set) from target.
func NewRecorder(target HyperparamTarget, recordMom bool) *Recorder {
	r := newRecorder(target, recordMom)
	return &r
}

func newRecorder(target HyperparamTarget, recordMom bool) Recorder {
	return Recorder{target: target, recordMom: recordMom}
}

func (r *Recorder) OnTrainBegin() error {
	r.TrainingClock.Reset()
	r.samples = nil
	return nil
}

func (r *Recorder) OnBatchBegin() error { return nil }

// OnBatchEnd records the step that just finished. metrics[0] is the training
// loss; an optional metrics[1] is the validation loss and the rest are
// auxiliary metrics.
func (r *Recorder) OnBatchEnd(metrics []float64) (bool, error) {
	if len(metrics) == 0 {
		return false, &StateError{Op: "batch end", Reason: "no loss supplied"}
	}
	r.AdvanceBatch()
	s := Sample{
		Iteration: r.Iteration,
		LR:        last(r.target.LearningRates()),
		Loss:      metrics[0],
	}
	if rest := metrics[1:]; len(rest) > 0 {
		s.Validated = true
		s.ValLoss = rest[0]
		if len(rest) > 1 {
			s.Metrics = append([]float64(nil), rest[1:]...)
		}
	}
	if r.recordMom {
		s.Momentum = last(r.target.Momentums())
	}
	r.samples = append(r.samples, s)
	return false, nil
}

func (r *Recorder) OnEpochEnd(metrics []float64) error {
	r.AdvanceEpoch()
	return nil
}

func (r *Recorder) OnTrainEnd() error { return nil }

// Samples returns the recorded steps. The slice must not be modified.
func (r *Recorder) Samples() []Sample { return r.samples }

// Window drops the first nSkip and the last nSkipEnd samples, the noisy ends
// of a range-test curve.
func (r *Recorder) Window(nSkip, nSkipEnd int) []Sample {
	end := len(r.samples) - nSkipEnd
	if nSkip < 0 {
		nSkip = 0
	}
	if end <= nSkip {
		return nil
	}
	return r.samples[nSkip:end]
}

func (r *Recorder) Iterations() []int {
	out := make([]int, len(r.samples))
	for i, s := range r.samples {
		out[i] = s.Iteration
	}
	return out
}

func (r *Recorder) LearningRates() []float64 { return series(r.samples, func(s Sample) float64 { return s.LR }) }
func (r *Recorder) Losses() []float64        { return series(r.samples, func(s Sample) float64 { return s.Loss }) }
func (r *Recorder) Momentums() []float64     { return series(r.samples, func(s Sample) float64 { return s.Momentum }) }

// ValLosses returns the validation losses of the samples that carried one.
func (r *Recorder) ValLosses() []float64 {
	var out []float64
	for _, s := range r.samples {
		if s.Validated {
			out = append(out, s.ValLoss)
		}
	}
	return out
}

// Metric returns auxiliary metric i of every sample that carried it.
func (r *Recorder) Metric(i int) []float64 {
	var out []float64
	for _, s := range r.samples {
		if i < len(s.Metrics) {
			out = append(out, s.Metrics[i])
		}
	}
	return out
}

// Summary describes a loss curve.
type Summary struct {
	Steps     int
	MeanLoss  float64
	MinLoss   float64
	MinLossLR float64
	// SteepestLR is the learning rate where the smoothed loss fell fastest.
	SteepestLR float64
}

// Summary computes a Summary over the samples left after Window(nSkip,
// nSkipEnd). Losses are smoothed with beta before locating the steepest drop.
func (r *Recorder) Summary(nSkip, nSkipEnd int, beta float64) Summary {
	win := r.Window(nSkip, nSkipEnd)
	if len(win) == 0 {
		return Summary{}
	}
	losses := series(win, func(s Sample) float64 { return s.Loss })
	lrs := series(win, func(s Sample) float64 { return s.LR })

	sum := Summary{
		Steps:    len(win),
		MeanLoss: stat.Mean(losses, nil),
	}
	minIdx := floats.MinIdx(losses)
	sum.MinLoss, sum.MinLossLR = losses[minIdx], lrs[minIdx]

	sum.SteepestLR = lrs[0]
	if len(win) > 1 {
		smoothed := SmoothCurve(losses, beta)
		diffs := make([]float64, len(smoothed)-1)
		for i := range diffs {
			diffs[i] = smoothed[i+1] - smoothed[i]
		}
		sum.SteepestLR = lrs[floats.MinIdx(diffs)+1]
	}
	return sum
}

// SmoothCurve is a bias-corrected exponential moving average of vals.
func SmoothCurve(vals []float64, beta float64) []float64 {
	out := make([]float64, len(vals))
	avg := 0.0
	for i, v := range vals {
		avg = beta*avg + (1-beta)*v
		out[i] = avg / (1 - math.Pow(beta, float64(i+1)))
	}
	return out
}

func series(samples []Sample, f func(Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}
