package net

import (
	"log/slog"
	"math"
)

// Callback defines the interface for training callbacks. Every scheduling
// policy in package opt satisfies it.
type Callback interface {
	OnTrainBegin() error
	OnBatchBegin() error
	// OnBatchEnd receives the training loss, optionally followed by the
	// validation loss and auxiliary metrics. A true result stops training.
	OnBatchEnd(metrics []float64) (stop bool, err error)
	OnEpochEnd(metrics []float64) error
	OnTrainEnd() error
}

// Stopper is implemented by callbacks that can end training at an epoch
// boundary.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin() error                        { return nil }
func (c BaseCallback) OnBatchBegin() error                        { return nil }
func (c BaseCallback) OnBatchEnd(metrics []float64) (bool, error) { return false, nil }
func (c BaseCallback) OnEpochEnd(metrics []float64) error         { return nil }
func (c BaseCallback) OnTrainEnd() error                          { return nil }

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	stopped      bool
	logger       *slog.Logger
}

func NewEarlyStopping(patience int, threshold float64, logger *slog.Logger) *EarlyStopping {
	if logger == nil {
		logger = slog.Default()
	}
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
		logger:    logger,
	}
}

func (c *EarlyStopping) OnTrainBegin() error {
	c.bestLoss = math.MaxFloat64
	c.numBadEpochs = 0
	c.stopped = false
	return nil
}

func (c *EarlyStopping) OnEpochEnd(metrics []float64) error {
	if len(metrics) == 0 {
		return nil
	}
	loss := metrics[0]
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		c.logger.Info("early stopping", "loss", loss, "patience", c.Patience)
		c.stopped = true
	}
	return nil
}

func (c *EarlyStopping) ShouldStop() bool { return c.stopped }

// Logger logs epoch metrics every Interval epochs.
type Logger struct {
	BaseCallback
	Interval int
	Log      *slog.Logger

	epoch int
}

func (c *Logger) OnTrainBegin() error {
	c.epoch = 0
	return nil
}

func (c *Logger) OnEpochEnd(metrics []float64) error {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	if c.Interval > 0 && c.epoch%c.Interval == 0 {
		log.Info("epoch end", "epoch", c.epoch, "metrics", metrics)
	}
	c.epoch++
	return nil
}
