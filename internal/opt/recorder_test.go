package opt

import (
	"errors"
	"math"
	"testing"
)

func TestSmoothCurve(t *testing.T) {
	got := SmoothCurve([]float64{1, 1, 1, 1}, 0.5)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0] != 1.0 {
		t.Errorf("first value = %v, want exactly 1", got[0])
	}
	for i, v := range got {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("got[%d] = %v, want 1", i, v)
		}
	}
}

func TestSmoothCurveBiasCorrection(t *testing.T) {
	got := SmoothCurve([]float64{2, 4}, 0.5)
	// avg1 = 1, 1/(1-0.5) = 2; avg2 = 0.5 + 2 = 2.5, 2.5/(1-0.25)
	want := []float64{2, 2.5 / 0.75}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if again := SmoothCurve([]float64{2, 4}, 0.5); again[1] != got[1] {
		t.Error("SmoothCurve is not deterministic")
	}
}

func TestRecorderSamples(t *testing.T) {
	sgd := newTestSGD(0.1, 0.2)
	sgd.Groups[1].Momentum = 0.9
	r := NewRecorder(sgd, true)
	if err := r.OnTrainBegin(); err != nil {
		t.Fatal(err)
	}

	if _, err := r.OnBatchEnd([]float64{1.5}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.OnBatchEnd([]float64{1.2, 1.4}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.OnBatchEnd([]float64{1.0, 1.3, 0.6, 0.7}); err != nil {
		t.Fatal(err)
	}
	if err := r.OnEpochEnd([]float64{1.0}); err != nil {
		t.Fatal(err)
	}

	s := r.Samples()
	if len(s) != 3 {
		t.Fatalf("len(samples) = %d, want 3", len(s))
	}
	if s[0].Iteration != 1 || s[2].Iteration != 3 {
		t.Errorf("iterations = %v", r.Iterations())
	}
	if s[0].LR != 0.2 || s[0].Momentum != 0.9 {
		t.Errorf("sample 0 = %+v, want lr/momentum of the last group", s[0])
	}
	if s[0].Validated || !s[1].Validated || s[1].ValLoss != 1.4 {
		t.Errorf("validation flags wrong: %+v %+v", s[0], s[1])
	}
	if vl := r.ValLosses(); len(vl) != 2 || vl[1] != 1.3 {
		t.Errorf("ValLosses = %v", vl)
	}
	if m := r.Metric(1); len(m) != 1 || m[0] != 0.7 {
		t.Errorf("Metric(1) = %v", m)
	}
	if r.Epoch != 1 || r.Iteration != 3 {
		t.Errorf("clock = %+v", r.TrainingClock)
	}

	if _, err := r.OnBatchEnd(nil); !errors.Is(err, ErrState) {
		t.Errorf("empty metrics: err = %v, want ErrState", err)
	}
}

func TestRecorderWindowAndSummary(t *testing.T) {
	sgd := newTestSGD(0.1)
	r := NewRecorder(sgd, false)
	if err := r.OnTrainBegin(); err != nil {
		t.Fatal(err)
	}
	losses := []float64{5, 4, 3, 1, 0.5, 0.4, 2, 9}
	for i, l := range losses {
		sgd.SetLearningRates([]float64{float64(i + 1)})
		if _, err := r.OnBatchEnd([]float64{l}); err != nil {
			t.Fatal(err)
		}
	}

	if w := r.Window(2, 2); len(w) != 4 || w[0].Loss != 3 {
		t.Errorf("Window(2, 2) = %+v", w)
	}
	if w := r.Window(5, 5); w != nil {
		t.Errorf("overlapping window = %+v, want nil", w)
	}

	sum := r.Summary(0, 0, 0)
	if sum.Steps != 8 || sum.MinLoss != 0.4 || sum.MinLossLR != 6 {
		t.Errorf("summary = %+v", sum)
	}
	if want := (5 + 4 + 3 + 1 + 0.5 + 0.4 + 2 + 9) / 8.0; math.Abs(sum.MeanLoss-want) > 1e-12 {
		t.Errorf("MeanLoss = %v, want %v", sum.MeanLoss, want)
	}
	// with beta 0 the curve is unsmoothed: the biggest drop is 3 -> 1
	if sum.SteepestLR != 4 {
		t.Errorf("SteepestLR = %v, want 4", sum.SteepestLR)
	}
}
