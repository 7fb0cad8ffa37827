package opt

import (
	"log/slog"
	"math"
)

// A sweep stops once the loss exceeds divergenceFactor times the best loss.
// The best loss ignores the first warmupSkip iterations.
const (
	divergenceFactor = 4
	warmupSkip       = 10
	initialBest      = 1e9
)

// RangeTestConfig configures RangeTest.
type RangeTestConfig struct {
	// Steps is the number of batches the sweep takes to reach EndLR.
	Steps int
	EndLR float64
	// Linear sweeps arithmetically instead of geometrically.
	Linear bool
	// StopAtBudget stops the sweep unconditionally after Steps batches.
	StopAtBudget bool
	// KeepOnDivergence disables the divergence stop.
	KeepOnDivergence bool
	Logger           *slog.Logger
}

func (c RangeTestConfig) Validate() error {
	if c.Steps <= 0 {
		return configErr("Steps", "must be > 0, got %d", c.Steps)
	}
	if !(c.EndLR > 0) {
		return configErr("EndLR", "must be > 0, got %g", c.EndLR)
	}
	return nil
}

// RangeTest sweeps the learning rate from the baseline towards EndLR, one
// step per batch, and stops once the loss diverges. The recorded lr/loss
// curve is used to choose a baseline for real training.
type RangeTest struct {
	updater
	cfg    RangeTestConfig
	lrMult float64
	best   float64
	logger *slog.Logger
}

// NewRangeTest creates a learning rate range test. The ratio EndLR/baseline
// uses the learning rate of the last parameter group.
func NewRangeTest(target HyperparamTarget, cfg RangeTestConfig) (*RangeTest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := newUpdater(target, false)
	if err != nil {
		return nil, err
	}
	base := last(u.baseline)
	if !(base > 0) {
		return nil, configErr("baseline", "learning rate must be > 0, got %g", base)
	}
	ratio := cfg.EndLR / base
	r := &RangeTest{
		updater: u,
		cfg:     cfg,
		best:    initialBest,
		logger:  cfg.Logger,
	}
	if cfg.Linear {
		r.lrMult = ratio / float64(cfg.Steps)
	} else {
		r.lrMult = math.Pow(ratio, 1/float64(cfg.Steps))
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.policy = r
	return r, nil
}

// LRMult is the per-step factor of the sweep.
func (r *RangeTest) LRMult() float64 { return r.lrMult }

// Best is the lowest loss seen after the first iterations.
func (r *RangeTest) Best() float64 { return r.best }

func (r *RangeTest) OnTrainBegin() error {
	if err := r.updater.OnTrainBegin(); err != nil {
		return err
	}
	r.best = initialBest
	return nil
}

func (r *RangeTest) CalcLR(baseline []float64) []float64 {
	var mult float64
	if r.cfg.Linear {
		mult = r.lrMult * float64(r.Iteration)
	} else {
		mult = math.Pow(r.lrMult, float64(r.Iteration))
	}
	return scaled(baseline, mult)
}

// OnBatchEnd returns true when the sweep is over: the budget is spent, or
// the loss is NaN or has blown past the best loss.
func (r *RangeTest) OnBatchEnd(metrics []float64) (bool, error) {
	if len(metrics) == 0 {
		return false, &StateError{Op: "batch end", Reason: "no loss supplied"}
	}
	if r.cfg.StopAtBudget && r.Iteration == r.cfg.Steps {
		r.logger.Info("range test budget spent", "iteration", r.Iteration)
		return true, nil
	}
	loss := metrics[0]
	if !r.cfg.KeepOnDivergence && (math.IsNaN(loss) || loss > r.best*divergenceFactor) {
		r.logger.Info("range test diverged", "iteration", r.Iteration, "loss", loss, "best", r.best)
		return true, nil
	}
	if loss < r.best && r.Iteration > warmupSkip {
		r.best = loss
	}
	return r.updater.OnBatchEnd(metrics)
}

// RangeReport holds the series a plotting tool needs to read a sweep.
type RangeReport struct {
	LRs       []float64
	Losses    []float64
	ValLosses []float64
	Metrics   [][]float64
}

// Report returns the recorded sweep with nSkip samples dropped at the start
// and nSkipEnd at the end. Every series is aligned with LRs: a sample that
// carried no validation loss or metric reads NaN at its position.
// Validation losses and auxiliary metrics are smoothed with beta 0.98 when
// smoothed is set.
func (r *RangeTest) Report(nSkip, nSkipEnd int, smoothed bool) RangeReport {
	win := r.Window(nSkip, nSkipEnd)
	rep := RangeReport{
		LRs:    series(win, func(s Sample) float64 { return s.LR }),
		Losses: series(win, func(s Sample) float64 { return s.Loss }),
	}
	if len(win) == 0 {
		return rep
	}
	start := max(nSkip, 0)

	// Smoothing runs over the whole curve before trimming so the EMA has
	// its full history.
	trim := func(get func(Sample) (float64, bool)) []float64 {
		vals, ok := aligned(r.Samples(), get, smoothed)
		if !ok {
			return nil
		}
		return vals[start : start+len(win)]
	}
	rep.ValLosses = trim(func(s Sample) (float64, bool) { return s.ValLoss, s.Validated })
	nMetrics := 0
	for _, s := range r.Samples() {
		if len(s.Metrics) > nMetrics {
			nMetrics = len(s.Metrics)
		}
	}
	for i := 0; i < nMetrics; i++ {
		rep.Metrics = append(rep.Metrics, trim(func(s Sample) (float64, bool) {
			if i < len(s.Metrics) {
				return s.Metrics[i], true
			}
			return 0, false
		}))
	}
	return rep
}

// aligned extracts one value per sample, NaN where get reports none. The
// smoothing only sees present values. ok is false when no sample has one.
func aligned(samples []Sample, get func(Sample) (float64, bool), smoothed bool) (vals []float64, ok bool) {
	vals = make([]float64, len(samples))
	var idx []int
	var present []float64
	for i, s := range samples {
		v, has := get(s)
		if !has {
			vals[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
		present = append(present, v)
	}
	if len(present) == 0 {
		return nil, false
	}
	if smoothed {
		present = SmoothCurve(present, 0.98)
	}
	for j, i := range idx {
		vals[i] = present[j]
	}
	return vals, true
}
