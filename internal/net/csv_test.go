package net

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

func TestCSVLoader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_loader.csv")
	file, err := os.Create(filename)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	writer := csv.NewWriter(file)
	writer.Write([]string{"f1", "f2", "y", "f3"})
	writer.Write([]string{"1.0", "2.0", "0.5", "3.0"})
	writer.Write([]string{"4.0", "5.0", "1.5", "6.0"})
	writer.Flush()
	file.Close()

	dataset, err := LoadCSV(filename, 2, true)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	expectedSamples := [][]float64{
		{1.0, 2.0, 3.0},
		{4.0, 5.0, 6.0},
	}
	if !reflect.DeepEqual(dataset.Samples, expectedSamples) {
		t.Errorf("expected samples %v, got %v", expectedSamples, dataset.Samples)
	}
	if !reflect.DeepEqual(dataset.Labels, []float64{0.5, 1.5}) {
		t.Errorf("expected labels [0.5 1.5], got %v", dataset.Labels)
	}

	if _, err := LoadCSV(filename, 4, true); err == nil {
		t.Error("expected an error for an out of range label column")
	}
	if _, err := LoadCSV(filename, 0, false); err == nil {
		t.Error("expected a parse error on the header row")
	}
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_logger.csv")
	sgd := newQuadSGD(0.5)
	sgd.Groups[0].Momentum = 0.9

	logger := NewCSVLogger(filename, false, sgd)
	if err := logger.OnTrainBegin(); err != nil {
		t.Fatal(err)
	}
	logger.OnBatchEnd([]float64{0.5})
	logger.OnBatchEnd([]float64{0.4})
	logger.OnEpochEnd([]float64{0.4})
	logger.OnBatchEnd([]float64{0.3})
	if err := logger.OnTrainEnd(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("failed to open logger file: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to read csv: %v", err)
	}

	if len(records) != 4 { // Header + 3 batches
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0][2] != "lr" || records[0][5] != "loss" {
		t.Errorf("unexpected header %v", records[0])
	}
	if got := records[1][:6]; !reflect.DeepEqual(got, []string{"0", "1", "0.5", "0.900000", "0", "0.500000"}) {
		t.Errorf("first row = %v", got)
	}
	if records[3][0] != "1" || records[3][1] != "3" {
		t.Errorf("last row = %v, want epoch 1 iteration 3", records[3])
	}
}

func TestCSVLoggerAppliedDecay(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "decay.csv")
	sgd := opt.NewSGD(
		&opt.ParamGroup{
			Params:       []*opt.Param{{Data: []float64{1, 2}, Grad: make([]float64, 2)}},
			LearningRate: 0.1,
			WeightDecay:  0.5,
		},
		// bias-like group without decay
		&opt.ParamGroup{
			Params:       []*opt.Param{{Data: []float64{1}, Grad: make([]float64, 1)}},
			LearningRate: 0.1,
		},
	)
	wd, err := opt.NewWeightDecayNormalizer(sgd, opt.WeightDecayConfig{
		BatchesPerEpoch: 2, CycleLen: 1, CycleMult: 1, Cycles: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	logger := NewCSVLogger(filename, false, sgd)
	logger.Decay = wd

	s, err := NewSession(SessionConfig{Epochs: 1, BatchesPerEpoch: 2, Logger: quiet}, wd, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(&quadTrainer{losses: []float64{1}}); err != nil {
		t.Fatal(err)
	}
	// the normalizer owns the decay, so the optimizer reads zero
	if got := sgd.WeightDecays(); got[0] != 0 {
		t.Fatalf("optimizer decay = %v, want zeroed", got)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, row := range records[1:] {
		if row[4] != "0.5" {
			t.Errorf("weight_decay = %q, want the applied 0.5 (row %v)", row[4], row)
		}
	}
}

func TestCSVLoggerAppend(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "append.csv")
	sgd := newQuadSGD(0.1)

	for i := 0; i < 2; i++ {
		logger := NewCSVLogger(filename, true, sgd)
		if err := logger.OnTrainBegin(); err != nil {
			t.Fatal(err)
		}
		logger.OnBatchEnd([]float64{1})
		if err := logger.OnTrainEnd(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	// one header, two rows
	if n := strings.Count(string(data), "\n"); n != 3 {
		t.Errorf("got %d lines, want 3:\n%s", n, data)
	}
}

func TestEventLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(&buf)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	s, err := NewSession(SessionConfig{Epochs: 1, BatchesPerEpoch: 2, Logger: quiet}, l)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(&quadTrainer{losses: []float64{0.5, 0.25}}); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"2024-03-01T12:00:00\t\ton_train_begin",
		"2024-03-01T12:00:00\t0\ton_batch_begin",
		"2024-03-01T12:00:00\t0\ton_batch_end: [0.5]",
		"2024-03-01T12:00:00\t1\ton_batch_begin",
		"2024-03-01T12:00:00\t1\ton_batch_end: [0.25]",
		"2024-03-01T12:00:00\t0\ton_epoch_end: [1]",
		"2024-03-01T12:00:00\t\ton_train_end",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("log =\n%s\nwant\n%s", buf.String(), want)
	}
}
