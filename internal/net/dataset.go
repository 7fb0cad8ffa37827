package net

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Dataset represents a collection of samples and labels.
type Dataset struct {
	Samples [][]float64
	Labels  []float64
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// Features returns the number of features per sample.
func (d *Dataset) Features() int {
	if len(d.Samples) == 0 {
		return 0
	}
	return len(d.Samples[0])
}

// LoadCSV loads a regression dataset from a CSV file. labelCol is the index
// of the target column; every other column is a feature. hasHeader skips the
// first line.
func LoadCSV(filename string, labelCol int, hasHeader bool) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, fmt.Errorf("csv file has no data rows")
	}

	numCols := len(records[0])
	if labelCol < 0 || labelCol >= numCols {
		return nil, fmt.Errorf("label column %d out of range [0, %d)", labelCol, numCols)
	}

	d := &Dataset{
		Samples: make([][]float64, 0, len(records)-startRow),
		Labels:  make([]float64, 0, len(records)-startRow),
	}
	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("inconsistent number of columns at row %d", i)
		}

		sample := make([]float64, 0, numCols-1)
		for j, valStr := range record {
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i, j, err)
			}
			if j == labelCol {
				d.Labels = append(d.Labels, val)
			} else {
				sample = append(sample, val)
			}
		}
		d.Samples = append(d.Samples, sample)
	}
	return d, nil
}

// Synthetic generates n samples of y = w.x + bias + noise with features
// drawn uniformly from [0, 1).
func Synthetic(n int, w []float64, bias, noise float64, rng *rand.Rand) *Dataset {
	d := &Dataset{Samples: make([][]float64, n), Labels: make([]float64, n)}
	for i := range d.Samples {
		x := make([]float64, len(w))
		for j := range x {
			x[j] = rng.Float64()
		}
		d.Samples[i] = x
		d.Labels[i] = floats.Dot(w, x) + bias + noise*rng.NormFloat64()
	}
	return d
}

// Normalize performs min-max normalization on the samples.
func (d *Dataset) Normalize() {
	n := d.Features()
	if n == 0 {
		return
	}

	col := make([]float64, len(d.Samples))
	for j := 0; j < n; j++ {
		for i, s := range d.Samples {
			col[i] = s[j]
		}
		lo, hi := floats.Min(col), floats.Max(col)
		for _, s := range d.Samples {
			if diff := hi - lo; diff != 0 {
				s[j] = (s[j] - lo) / diff
			} else {
				s[j] = 0
			}
		}
	}
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// Returns two new Datasets (train, test).
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset) {
	if ratio <= 0 {
		return &Dataset{}, d
	}
	if ratio >= 1 {
		return d, &Dataset{}
	}

	splitIdx := int(float64(len(d.Samples)) * ratio)

	train := &Dataset{
		Samples: d.Samples[:splitIdx],
		Labels:  d.Labels[:splitIdx],
	}

	test := &Dataset{
		Samples: d.Samples[splitIdx:],
		Labels:  d.Labels[splitIdx:],
	}

	return train, test
}

// Batches returns the number of batches of the given size, the last one
// possibly short.
func (d *Dataset) Batches(size int) int {
	if size <= 0 {
		return 0
	}
	return (d.Len() + size - 1) / size
}
