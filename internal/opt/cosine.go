package opt

import "math"

// CosineConfig configures CosineAnnealing.
type CosineConfig struct {
	// Steps is the number of batches in the first cycle.
	Steps int
	// CycleMult multiplies the cycle length after every cycle. 0 means 1.
	CycleMult  int
	OnCycleEnd CycleEndFunc
}

func (c CosineConfig) Validate() error {
	if c.Steps < 2 {
		return configErr("Steps", "must be >= 2, got %d", c.Steps)
	}
	if c.CycleMult < 0 {
		return configErr("CycleMult", "must be >= 0, got %d", c.CycleMult)
	}
	return nil
}

// CosineAnnealing anneals the learning rate from the baseline to zero along
// half a cosine, restarting at the baseline when a cycle ends.
//
// While the global iteration is below Steps/20 of the current cycle length
// the rate is held at baseline/100.
type CosineAnnealing struct {
	updater
	cycle CycleTracker
}

// NewCosineAnnealing creates a cosine schedule over target's learning rates.
func NewCosineAnnealing(target HyperparamTarget, cfg CosineConfig) (*CosineAnnealing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := newUpdater(target, false)
	if err != nil {
		return nil, err
	}
	c := &CosineAnnealing{updater: u}
	c.cycle = newCycleTracker(cfg.Steps, cfg.CycleMult, cfg.OnCycleEnd)
	c.policy = c
	return c, nil
}

func (c *CosineAnnealing) OnTrainBegin() error {
	c.cycle.Reset()
	return c.updater.OnTrainBegin()
}

// Cycle returns the current cycle position.
func (c *CosineAnnealing) Cycle() CycleTracker { return c.cycle }

func (c *CosineAnnealing) CalcLR(baseline []float64) []float64 {
	if float64(c.Iteration) < float64(c.cycle.Length)/20 {
		c.cycle.Advance(c)
		return scaled(baseline, 1.0/100)
	}
	cosOut := math.Cos(math.Pi*float64(c.cycle.Iter)/float64(c.cycle.Length)) + 1
	c.cycle.Advance(c)
	return scaled(baseline, cosOut/2)
}
