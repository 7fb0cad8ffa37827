package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// Saver persists the model under name.
type Saver interface {
	Save(name string) error
}

// BestCheckpoint saves the model at the end of every epoch that improves on
// the best one seen so far.
//
// In loss mode an epoch improves when its loss is strictly lower. In metric
// mode (metrics[1] is an accuracy) it improves when the accuracy is strictly
// higher, or equal with a strictly lower loss.
type BestCheckpoint struct {
	BaseCallback
	Name string

	saver      Saver
	withMetric bool
	logger     *slog.Logger

	hasBest  bool
	bestLoss float64
	bestAcc  float64
	saves    int
}

// NewBestCheckpoint creates a checkpoint gate. withMetric selects metric
// mode.
func NewBestCheckpoint(saver Saver, name string, withMetric bool, logger *slog.Logger) *BestCheckpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestCheckpoint{Name: name, saver: saver, withMetric: withMetric, logger: logger}
}

// Best returns the best loss and accuracy so far. ok is false before the
// first save.
func (c *BestCheckpoint) Best() (loss, acc float64, ok bool) {
	return c.bestLoss, c.bestAcc, c.hasBest
}

// Saves is the number of saves requested so far.
func (c *BestCheckpoint) Saves() int { return c.saves }

// Improved applies the comparison rule to metrics and records them as the
// new best when they win.
func (c *BestCheckpoint) Improved(metrics []float64) (bool, error) {
	if len(metrics) == 0 {
		return false, &opt.StateError{Op: "epoch end", Reason: "no loss supplied"}
	}
	loss := metrics[0]
	if !c.withMetric {
		if c.hasBest && !(loss < c.bestLoss) {
			return false, nil
		}
		c.hasBest, c.bestLoss = true, loss
		return true, nil
	}

	if len(metrics) < 2 {
		return false, &opt.StateError{Op: "epoch end", Reason: "metric mode needs loss and accuracy"}
	}
	acc := metrics[1]
	switch {
	case !c.hasBest || acc > c.bestAcc:
	case acc == c.bestAcc && loss < c.bestLoss:
	default:
		return false, nil
	}
	c.hasBest, c.bestLoss, c.bestAcc = true, loss, acc
	return true, nil
}

func (c *BestCheckpoint) OnTrainBegin() error {
	c.hasBest, c.bestLoss, c.bestAcc, c.saves = false, 0, 0, 0
	return nil
}

// OnEpochEnd saves the model when the epoch improved. Save failures are
// logged and do not interrupt training.
func (c *BestCheckpoint) OnEpochEnd(metrics []float64) error {
	better, err := c.Improved(metrics)
	if err != nil || !better {
		return err
	}
	c.saves++
	if err := c.saver.Save(c.Name); err != nil {
		c.logger.Warn("checkpoint save failed", "name", c.Name, "error", err)
		return nil
	}
	c.logger.Info("checkpoint saved", "name", c.Name, "loss", c.bestLoss, "acc", c.bestAcc)
	return nil
}

// FileSaver writes the parameters of every group to Dir/<name>.gob.
type FileSaver struct {
	Dir    string
	Source opt.ParamSource
}

// Save implements Saver. A failed close is reported, since it can hide a
// short write.
func (s *FileSaver) Save(name string) error {
	file, err := os.Create(filepath.Join(s.Dir, name+".gob"))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	err = writeParams(file, s.Source.ParamGroups())
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	return err
}

func writeParams(w io.Writer, groups []*opt.ParamGroup) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(int32(len(groups))); err != nil {
		return fmt.Errorf("failed to encode group count: %w", err)
	}
	for i, g := range groups {
		data := make([][]float64, len(g.Params))
		for j, p := range g.Params {
			data[j] = p.Data
		}
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode group %d: %w", i, err)
		}
	}
	return nil
}

// LoadParams reads a file written by FileSaver.
func LoadParams(filename string) ([][][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	var n int32
	if err := decoder.Decode(&n); err != nil {
		return nil, fmt.Errorf("failed to read group count: %w", err)
	}
	groups := make([][][]float64, n)
	for i := range groups {
		if err := decoder.Decode(&groups[i]); err != nil {
			return nil, fmt.Errorf("failed to read group %d: %w", i, err)
		}
	}
	return groups, nil
}
