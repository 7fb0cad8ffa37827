package opt

import (
	"gonum.org/v1/gonum/floats"
)

// Scheduler is the contract shared by every hyperparameter policy.
//
// OnTrainBegin resets the policy and pushes the first values to the target.
// OnBatchEnd records the finished step and pushes the values for the next
// one; a true result asks the training loop to stop.
type Scheduler interface {
	OnTrainBegin() error
	OnBatchBegin() error
	OnBatchEnd(metrics []float64) (stop bool, err error)
	OnEpochEnd(metrics []float64) error
	OnTrainEnd() error

	// CalcLR derives the learning rates for the next step from baseline.
	CalcLR(baseline []float64) []float64
	// CalcMomentum derives the momentums for the next step. It returns nil
	// when the policy does not schedule momentum.
	CalcMomentum() []float64
}

// CycleEndFunc is notified when a cyclic policy completes a cycle. cycle is
// the zero-based index of the cycle that just finished.
type CycleEndFunc func(s Scheduler, cycle int)

// TrainingClock counts batches and epochs since the start of training.
type TrainingClock struct {
	Iteration int
	Epoch     int
}

func (c *TrainingClock) AdvanceBatch() { c.Iteration++ }
func (c *TrainingClock) AdvanceEpoch() { c.Epoch++ }
func (c *TrainingClock) Reset()        { c.Iteration, c.Epoch = 0, 0 }

// CycleTracker holds the position inside the current cycle.
//
// Mult > 1 grows Length after every completed cycle.
type CycleTracker struct {
	Iter   int
	Count  int
	Length int
	Mult   int

	initial int
	onEnd   CycleEndFunc
}

func newCycleTracker(length, mult int, onEnd CycleEndFunc) CycleTracker {
	return CycleTracker{Length: length, Mult: mult, initial: length, onEnd: onEnd}
}

// Reset returns to the first position of the first cycle.
func (t *CycleTracker) Reset() {
	t.Iter, t.Count, t.Length = 0, 0, t.initial
}

// Advance moves one position forward and reports whether that closed a cycle.
// Iter always stays in [0, Length).
func (t *CycleTracker) Advance(owner Scheduler) bool {
	t.Iter++
	if t.Iter < t.Length {
		return false
	}
	t.Iter = 0
	if t.Mult > 1 {
		t.Length *= t.Mult
	}
	if t.onEnd != nil {
		t.onEnd(owner, t.Count)
	}
	t.Count++
	return true
}

// updater pushes the values of a policy to the target after every batch.
type updater struct {
	Recorder
	baseline []float64
	policy   Scheduler
}

func newUpdater(target HyperparamTarget, recordMom bool) (updater, error) {
	if target == nil {
		return updater{}, configErr("target", "is nil")
	}
	lrs := target.LearningRates()
	if len(lrs) == 0 {
		return updater{}, configErr("target", "has no parameter groups")
	}
	return updater{
		Recorder: newRecorder(target, recordMom),
		baseline: append([]float64(nil), lrs...),
	}, nil
}

// Baseline returns the learning rates captured at construction.
func (u *updater) Baseline() []float64 { return append([]float64(nil), u.baseline...) }

func (u *updater) OnTrainBegin() error {
	if err := u.Recorder.OnTrainBegin(); err != nil {
		return err
	}
	u.update()
	return nil
}

func (u *updater) OnBatchEnd(metrics []float64) (bool, error) {
	stop, err := u.Recorder.OnBatchEnd(metrics)
	if err != nil {
		return stop, err
	}
	u.update()
	return stop, nil
}

func (u *updater) CalcMomentum() []float64 { return nil }

func (u *updater) update() {
	u.target.SetLearningRates(u.policy.CalcLR(u.baseline))
	if u.recordMom {
		if moms := u.policy.CalcMomentum(); moms != nil {
			u.target.SetMomentums(moms)
		}
	}
}

// scaled returns baseline*c without touching baseline.
func scaled(baseline []float64, c float64) []float64 {
	return floats.ScaleTo(make([]float64, len(baseline)), c, baseline)
}

// filled returns a vector of n copies of v.
func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	floats.AddConst(v, out)
	return out
}
