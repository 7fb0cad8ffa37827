// Package net drives the training lifecycle and the callbacks attached to it.
package net

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// Trainer performs the work the session schedules callbacks around.
type Trainer interface {
	// TrainBatch runs one optimizer step and returns the training loss,
	// optionally followed by validation loss and auxiliary metrics.
	TrainBatch(epoch, batch int) ([]float64, error)
	// EvalEpoch returns the epoch metrics: loss first, then any metric the
	// checkpoint gate compares (accuracy).
	EvalEpoch(epoch int) ([]float64, error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Epochs          int
	BatchesPerEpoch int
	Logger          *slog.Logger
}

func (c SessionConfig) Validate() error {
	if c.Epochs <= 0 {
		return &opt.ConfigError{Field: "Epochs", Reason: fmt.Sprintf("must be > 0, got %d", c.Epochs)}
	}
	if c.BatchesPerEpoch <= 0 {
		return &opt.ConfigError{Field: "BatchesPerEpoch", Reason: fmt.Sprintf("must be > 0, got %d", c.BatchesPerEpoch)}
	}
	return nil
}

// Result summarises a finished session.
type Result struct {
	Epochs  int
	Batches int
	// Stopped is set when a callback ended training early.
	Stopped     bool
	LastMetrics []float64
}

// Session invokes callbacks at the lifecycle events of a training run, in
// the order they were registered. Events never overlap.
type Session struct {
	cfg       SessionConfig
	callbacks []Callback
	logger    *slog.Logger
}

// NewSession creates a session running the given callbacks.
func NewSession(cfg SessionConfig, callbacks ...Callback) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, callbacks: callbacks, logger: logger}, nil
}

// Run trains for the configured epochs. A stop request from a batch end
// discards the rest of the plan. OnTrainEnd runs on every exit path.
func (s *Session) Run(t Trainer) (res Result, err error) {
	if err := s.each("train begin", Callback.OnTrainBegin); err != nil {
		return res, errors.Join(err, s.each("train end", Callback.OnTrainEnd))
	}
	s.logger.Debug("training started", "epochs", s.cfg.Epochs, "batches_per_epoch", s.cfg.BatchesPerEpoch)

	defer func() {
		if endErr := s.each("train end", Callback.OnTrainEnd); endErr != nil {
			err = errors.Join(err, endErr)
		}
		s.logger.Debug("training finished", "epochs", res.Epochs, "batches", res.Batches, "stopped", res.Stopped)
	}()

	for epoch := 0; epoch < s.cfg.Epochs; epoch++ {
		for batch := 0; batch < s.cfg.BatchesPerEpoch; batch++ {
			if err := s.each("batch begin", Callback.OnBatchBegin); err != nil {
				return res, err
			}
			metrics, err := t.TrainBatch(epoch, batch)
			if err != nil {
				return res, fmt.Errorf("train batch %d of epoch %d: %w", batch, epoch, err)
			}
			res.Batches++
			stop, err := s.batchEnd(metrics)
			if err != nil {
				return res, err
			}
			if stop {
				res.Stopped = true
				return res, nil
			}
		}

		metrics, err := t.EvalEpoch(epoch)
		if err != nil {
			return res, fmt.Errorf("eval epoch %d: %w", epoch, err)
		}
		for _, cb := range s.callbacks {
			if err := cb.OnEpochEnd(metrics); err != nil {
				return res, fmt.Errorf("epoch end: %w", err)
			}
		}
		res.Epochs++
		res.LastMetrics = metrics

		for _, cb := range s.callbacks {
			if st, ok := cb.(Stopper); ok && st.ShouldStop() {
				res.Stopped = true
				return res, nil
			}
		}
	}
	return res, nil
}

// batchEnd notifies every callback, even after one of them asked to stop,
// so that recorders see the final step.
func (s *Session) batchEnd(metrics []float64) (bool, error) {
	stop := false
	for _, cb := range s.callbacks {
		st, err := cb.OnBatchEnd(metrics)
		if err != nil {
			return stop, fmt.Errorf("batch end: %w", err)
		}
		stop = stop || st
	}
	return stop, nil
}

func (s *Session) each(event string, fn func(Callback) error) error {
	for _, cb := range s.callbacks {
		if err := fn(cb); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
	}
	return nil
}
