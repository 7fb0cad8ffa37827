package sgdr

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// quadratic pulls every parameter towards 3.
type quadratic struct{ sgd *SGD }

func (q *quadratic) loss() float64 {
	var l float64
	for _, g := range q.sgd.Groups {
		for _, p := range g.Params {
			for _, v := range p.Data {
				l += (v - 3) * (v - 3)
			}
		}
	}
	return l
}

func (q *quadratic) TrainBatch(epoch, batch int) ([]float64, error) {
	l := q.loss()
	q.sgd.ZeroGrad()
	for _, g := range q.sgd.Groups {
		for _, p := range g.Params {
			for i, v := range p.Data {
				p.Grad[i] = 2 * (v - 3)
			}
		}
	}
	q.sgd.Step()
	return []float64{l}, nil
}

func (q *quadratic) EvalEpoch(epoch int) ([]float64, error) {
	return []float64{q.loss()}, nil
}

type countingSaver struct{ names []string }

func (s *countingSaver) Save(name string) error {
	s.names = append(s.names, name)
	return nil
}

func TestFacadeSession(t *testing.T) {
	sgd := NewSGD(&ParamGroup{
		Params:       []*Param{{Data: []float64{0, 1}, Grad: make([]float64, 2)}},
		LearningRate: 0.1,
		WeightDecay:  0.01,
	})
	wd, err := WeightDecayNormalizer(sgd, WeightDecayConfig{
		BatchesPerEpoch: 4, CycleLen: 1, CycleMult: 1, Cycles: 3, Normalize: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	var cycles []int
	cos, err := CosineAnnealing(sgd, CosineConfig{
		Steps:      4,
		OnCycleEnd: func(s Scheduler, cycle int) { cycles = append(cycles, cycle) },
	})
	if err != nil {
		t.Fatal(err)
	}
	saver := &countingSaver{}
	csvPath := filepath.Join(t.TempDir(), "train.csv")
	csvLog := CSVLogger(csvPath, false, sgd)
	csvLog.Decay = wd
	var events bytes.Buffer

	s, err := NewSession(SessionConfig{Epochs: 3, BatchesPerEpoch: 4, Logger: quiet},
		wd, cos,
		BestCheckpoint(saver, "best", false, quiet),
		EarlyStopping(5, 0, quiet),
		csvLog,
		EventLogger(&events),
	)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(&quadratic{sgd: sgd})
	if err != nil {
		t.Fatal(err)
	}

	if res.Stopped || res.Epochs != 3 || res.Batches != 12 {
		t.Errorf("result = %+v, want 3 full epochs of 4 batches", res)
	}
	// a cycle of 4 closes at batch ends 3, 7 and 11
	if want := []int{0, 1, 2}; !reflect.DeepEqual(cycles, want) {
		t.Errorf("cycle ends = %v, want %v", cycles, want)
	}
	if len(saver.names) == 0 {
		t.Error("no checkpoint saved")
	}
	if len(wd.History()) != 12 {
		t.Errorf("decay history = %d batches, want 12", len(wd.History()))
	}
	if n := strings.Count(events.String(), "on_batch_end"); n != 12 {
		t.Errorf("event log has %d batch ends, want 12", n)
	}

	file, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 13 {
		t.Fatalf("csv rows = %d, want header + 12", len(records))
	}
	// 0.01 / sqrt(4 batches * 1 epoch)
	if records[1][4] != "0.005" {
		t.Errorf("weight_decay = %q, want 0.005", records[1][4])
	}
}

func TestFacadeErrors(t *testing.T) {
	sgd := NewSGD(&ParamGroup{
		Params:       []*Param{{Data: []float64{0}, Grad: make([]float64, 1)}},
		LearningRate: 0.1,
	})
	if _, err := CosineAnnealing(sgd, CosineConfig{Steps: 1}); !errors.Is(err, ErrConfig) {
		t.Errorf("cosine: err = %v, want ErrConfig", err)
	}
	if _, err := Triangular(sgd, TriangularConfig{Steps: 10}); !errors.Is(err, ErrConfig) {
		t.Errorf("triangular: err = %v, want ErrConfig", err)
	}
	if _, err := NewSession(SessionConfig{}); !errors.Is(err, ErrConfig) {
		t.Errorf("session: err = %v, want ErrConfig", err)
	}

	rt, err := RangeTest(sgd, RangeTestConfig{Steps: 10, EndLR: 1, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.OnBatchEnd([]float64{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.OnBatchEnd(nil); !errors.Is(err, ErrState) {
		t.Errorf("range test: err = %v, want ErrState", err)
	}
	if got := SmoothCurve([]float64{2, 2, 2}, 0.98); got[2] != 2 {
		t.Errorf("SmoothCurve = %v", got)
	}
}
