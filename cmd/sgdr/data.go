package main

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/spf13/pflag"

	"github.com/FlavioCFOliveira/GoSGDR/internal/net"
)

// dataFlags selects a CSV dataset or a synthetic linear problem.
type dataFlags struct {
	path      string
	label     int
	header    bool
	samples   int
	noise     float64
	seed      int64
	split     float64
	batchSize int
}

func (d *dataFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&d.path, "data", "", "CSV dataset path (default: synthetic data)")
	fs.IntVar(&d.label, "label", -1, "Label column index (default: last column)")
	fs.BoolVar(&d.header, "header", true, "CSV has a header row")
	fs.IntVar(&d.samples, "samples", 1000, "Synthetic sample count")
	fs.Float64Var(&d.noise, "noise", 0.1, "Synthetic label noise")
	fs.Int64Var(&d.seed, "seed", 42, "Random seed")
	fs.Float64Var(&d.split, "split", 0.8, "Fraction of samples used for training")
	fs.IntVar(&d.batchSize, "batch", 32, "Batch size")
}

func (d *dataFlags) load() (train, val *net.Dataset, err error) {
	var ds *net.Dataset
	if d.path == "" {
		rng := rand.New(rand.NewSource(d.seed))
		ds = net.Synthetic(d.samples, []float64{3, -2, 1, 0.5}, 1, d.noise, rng)
		slog.Info("Generated synthetic data", "samples", ds.Len(), "features", ds.Features())
	} else {
		label := d.label
		if label < 0 {
			if label, err = lastColumn(d.path, d.header); err != nil {
				return nil, nil, err
			}
		}
		if ds, err = net.LoadCSV(d.path, label, d.header); err != nil {
			return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		slog.Info("Loaded dataset", "path", d.path, "samples", ds.Len(), "features", ds.Features())
	}
	ds.Normalize()
	train, val = ds.Split(d.split)
	if train.Len() == 0 {
		return nil, nil, fmt.Errorf("split %g leaves no training samples", d.split)
	}
	return train, val, nil
}

// lastColumn returns the index of the last column of a CSV file.
func lastColumn(path string, header bool) (int, error) {
	ds, err := net.LoadCSV(path, 0, header)
	if err != nil {
		return 0, fmt.Errorf("failed to load dataset: %w", err)
	}
	return ds.Features(), nil
}
