package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DecayTarget is an optimizer whose weight decay can be taken over and whose
// parameters can be read and written between steps.
type DecayTarget interface {
	HyperparamTarget
	ParamSource
}

// WeightDecayConfig configures WeightDecayNormalizer.
type WeightDecayConfig struct {
	BatchesPerEpoch int
	// CycleLen is the number of epochs in the first cycle. Each following
	// cycle is CycleMult times longer than the previous one.
	CycleLen  int
	CycleMult int
	Cycles    int
	// Normalize scales the decay by 1/sqrt(BatchesPerEpoch * cycle length).
	Normalize bool
	// SchedMult, when set, multiplies the decay at every batch.
	SchedMult func(w *WeightDecayNormalizer) float64
}

func (c WeightDecayConfig) Validate() error {
	if c.BatchesPerEpoch <= 0 {
		return configErr("BatchesPerEpoch", "must be > 0, got %d", c.BatchesPerEpoch)
	}
	if c.CycleLen <= 0 {
		return configErr("CycleLen", "must be > 0, got %d", c.CycleLen)
	}
	if c.CycleMult < 1 {
		return configErr("CycleMult", "must be >= 1, got %d", c.CycleMult)
	}
	if c.Cycles <= 0 {
		return configErr("Cycles", "must be > 0, got %d", c.Cycles)
	}
	return nil
}

// EpochCycleLengths maps every planned epoch to the length, in epochs, of
// the cycle it belongs to.
func EpochCycleLengths(cycleLen, cycleMult, cycles int) map[int]int {
	plan := make(map[int]int)
	epoch := 0
	for c := 0; c < cycles; c++ {
		for i := 0; i < cycleLen; i++ {
			plan[epoch] = cycleLen
			epoch++
		}
		cycleLen *= cycleMult
	}
	return plan
}

// WeightDecayNormalizer applies decoupled weight decay: the optimizer's own
// decay is zeroed at batch begin and the decay is subtracted from the
// weights, proportionally to their pre-step values, at batch end.
type WeightDecayNormalizer struct {
	TrainingClock

	target  DecayTarget
	cfg     WeightDecayConfig
	initWDs []float64
	plan    map[int]int

	wds      []float64
	snapshot [][][]float64
	history  [][]float64
}

// NewWeightDecayNormalizer captures target's current weight decays as the
// baseline and precomputes the cycle plan.
func NewWeightDecayNormalizer(target DecayTarget, cfg WeightDecayConfig) (*WeightDecayNormalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, configErr("target", "is nil")
	}
	wds := target.WeightDecays()
	if len(wds) == 0 {
		return nil, configErr("target", "has no parameter groups")
	}
	return &WeightDecayNormalizer{
		target:  target,
		cfg:     cfg,
		initWDs: append([]float64(nil), wds...),
		plan:    EpochCycleLengths(cfg.CycleLen, cfg.CycleMult, cfg.Cycles),
	}, nil
}

// CycleLengthOf returns the cycle length planned for epoch.
func (w *WeightDecayNormalizer) CycleLengthOf(epoch int) (int, bool) {
	n, ok := w.plan[epoch]
	return n, ok
}

// History returns the decay vector applied at every batch so far.
func (w *WeightDecayNormalizer) History() [][]float64 { return w.history }

// Current returns the per-group decay applied to the running batch, or nil
// before the first batch. The target itself reads zero while the normalizer
// owns the decay.
func (w *WeightDecayNormalizer) Current() []float64 { return w.wds }

func (w *WeightDecayNormalizer) OnTrainBegin() error {
	w.TrainingClock.Reset()
	w.snapshot = nil
	w.history = nil
	return nil
}

func (w *WeightDecayNormalizer) OnBatchBegin() error {
	wdn := append([]float64(nil), w.initWDs...)

	wdm := 1.0
	if w.cfg.SchedMult != nil {
		wdm = w.cfg.SchedMult(w)
	}

	if w.cfg.Normalize {
		cycleLen, ok := w.plan[w.Epoch]
		if !ok {
			return &StateError{Op: "batch begin", Reason: "epoch past the planned cycles"}
		}
		floats.Scale(1/math.Sqrt(float64(w.cfg.BatchesPerEpoch*cycleLen)), wdn)
	}

	floats.Scale(wdm, wdn)
	w.wds = wdn
	w.history = append(w.history, wdn)

	w.target.SetWeightDecays(make([]float64, len(wdn)))

	groups := w.target.ParamGroups()
	w.snapshot = make([][][]float64, len(groups))
	for gi, g := range groups {
		w.snapshot[gi] = make([][]float64, len(g.Params))
		for pi, p := range g.Params {
			w.snapshot[gi][pi] = append([]float64(nil), p.Data...)
		}
	}
	w.AdvanceBatch()
	return nil
}

// OnBatchEnd decays every parameter that received a gradient this step.
func (w *WeightDecayNormalizer) OnBatchEnd(metrics []float64) (bool, error) {
	if w.snapshot == nil {
		return false, &StateError{Op: "batch end", Reason: "no snapshot from batch begin"}
	}
	snapshot := w.snapshot
	w.snapshot = nil

	groups := w.target.ParamGroups()
	if len(groups) != len(snapshot) || len(groups) != len(w.wds) {
		return false, &StateError{Op: "batch end", Reason: "parameter groups changed since batch begin"}
	}
	for gi, g := range groups {
		if len(g.Params) != len(snapshot[gi]) {
			return false, &StateError{Op: "batch end", Reason: "parameters changed since batch begin"}
		}
		for pi, p := range g.Params {
			if p.Grad == nil {
				continue
			}
			old := snapshot[gi][pi]
			if len(old) != len(p.Data) {
				return false, &StateError{Op: "batch end", Reason: "parameter shape changed since batch begin"}
			}
			floats.AddScaled(p.Data, -w.wds[gi], old)
		}
	}
	return false, nil
}

func (w *WeightDecayNormalizer) OnEpochEnd(metrics []float64) error {
	w.AdvanceEpoch()
	return nil
}

func (w *WeightDecayNormalizer) OnTrainEnd() error { return nil }
