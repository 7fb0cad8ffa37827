package net

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// CSVLogger writes one row per batch with the hyperparameters the step ran
// with and the loss it produced.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool
	// Decay, when set, supplies the weight decay actually applied. Use it
	// with a normalizer, which zeroes the target's own decay.
	Decay    DecaySource

	target    opt.HyperparamTarget
	file      *os.File
	writer    *csv.Writer
	start     time.Time
	iteration int
	epoch     int
}

// DecaySource reports the per-group weight decay of the running batch.
type DecaySource interface {
	Current() []float64
}

// NewCSVLogger creates a new CSVLogger reading hyperparameters from target.
func NewCSVLogger(filename string, append bool, target opt.HyperparamTarget) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
		target:   target,
	}
}

func (c *CSVLogger) OnTrainBegin() error {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		return fmt.Errorf("CSVLogger: failed to open file %s: %w", c.Filename, err)
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()
	c.iteration, c.epoch = 0, 0

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write([]string{"epoch", "iteration", "lr", "momentum", "weight_decay", "loss", "time_seconds"})
		c.writer.Flush()
	}
	return c.writer.Error()
}

func (c *CSVLogger) OnBatchEnd(metrics []float64) (bool, error) {
	if c.writer == nil || len(metrics) == 0 {
		return false, nil
	}
	c.iteration++

	elapsed := time.Since(c.start).Seconds()
	record := []string{
		strconv.Itoa(c.epoch),
		strconv.Itoa(c.iteration),
		fmt.Sprintf("%.8g", lastOf(c.target.LearningRates())),
		fmt.Sprintf("%.6f", lastOf(c.target.Momentums())),
		fmt.Sprintf("%.8g", c.weightDecay()),
		fmt.Sprintf("%.6f", metrics[0]),
		fmt.Sprintf("%.2f", elapsed),
	}

	if err := c.writer.Write(record); err != nil {
		slog.Warn("CSVLogger: failed to write record", "error", err)
	}
	return false, nil
}

// weightDecay is the largest decay across groups, since groups such as
// biases commonly carry none.
func (c *CSVLogger) weightDecay() float64 {
	wds := c.target.WeightDecays()
	if c.Decay != nil {
		if cur := c.Decay.Current(); cur != nil {
			wds = cur
		}
	}
	if len(wds) == 0 {
		return 0
	}
	return floats.Max(wds)
}

func (c *CSVLogger) OnEpochEnd(metrics []float64) error {
	c.epoch++
	if c.writer != nil {
		c.writer.Flush()
	}
	return nil
}

func (c *CSVLogger) OnTrainEnd() error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.writer.Error()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file = nil
	c.writer = nil
	return err
}

// EventLogger writes one timestamped line per lifecycle event.
type EventLogger struct {
	w     io.Writer
	now   func() time.Time
	batch int
	epoch int
}

// NewEventLogger creates an EventLogger writing to w.
func NewEventLogger(w io.Writer) *EventLogger {
	return &EventLogger{w: w, now: time.Now}
}

func (l *EventLogger) OnTrainBegin() error {
	l.batch, l.epoch = 0, 0
	return l.log("", "on_train_begin")
}

func (l *EventLogger) OnBatchBegin() error {
	return l.log(strconv.Itoa(l.batch), "on_batch_begin")
}

func (l *EventLogger) OnBatchEnd(metrics []float64) (bool, error) {
	err := l.log(strconv.Itoa(l.batch), fmt.Sprintf("on_batch_end: %v", metrics))
	l.batch++
	return false, err
}

func (l *EventLogger) OnEpochEnd(metrics []float64) error {
	err := l.log(strconv.Itoa(l.epoch), fmt.Sprintf("on_epoch_end: %v", metrics))
	l.epoch++
	return err
}

func (l *EventLogger) OnTrainEnd() error {
	return l.log("", "on_train_end")
}

func (l *EventLogger) log(counter, event string) error {
	_, err := fmt.Fprintf(l.w, "%s\t%s\t%s\n", l.now().Format("2006-01-02T15:04:05"), counter, event)
	return err
}

func lastOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}
