package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// policyFlags selects and configures a scheduling policy from the command
// line.
type policyFlags struct {
	name    string
	mult    int
	div     float64
	cutDiv  int
	pct     float64
	momHigh float64
	momLow  float64
}

func (p *policyFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&p.name, "policy", "cosine", "Schedule policy: cosine, triangular, pct")
	fs.IntVar(&p.mult, "cycle-mult", 1, "Cycle length multiplier after each restart (cosine)")
	fs.Float64Var(&p.div, "div", 10, "Ratio between peak and lowest learning rate (triangular, pct)")
	fs.IntVar(&p.cutDiv, "cut-div", 3, "Peak at cycle length / cut-div (triangular)")
	fs.Float64Var(&p.pct, "pct", 10, "Percent of the cycle spent in the final anneal (pct)")
	fs.Float64Var(&p.momHigh, "mom-high", 0, "Momentum at the lowest learning rate; 0 leaves momentum fixed")
	fs.Float64Var(&p.momLow, "mom-low", 0.85, "Momentum at the peak learning rate")
}

func (p *policyFlags) momentums() []float64 {
	if p.momHigh <= 0 {
		return nil
	}
	return []float64{p.momHigh, p.momLow}
}

// build creates the selected policy over target with cycles of steps
// batches.
func (p *policyFlags) build(target opt.HyperparamTarget, steps int) (opt.Scheduler, error) {
	onEnd := func(s opt.Scheduler, cycle int) {
		slog.Debug("cycle end", "policy", p.name, "cycle", cycle)
	}
	switch p.name {
	case "cosine":
		return opt.NewCosineAnnealing(target, opt.CosineConfig{
			Steps: steps, CycleMult: p.mult, OnCycleEnd: onEnd,
		})
	case "triangular":
		return opt.NewTriangularCyclic(target, opt.TriangularConfig{
			Steps: steps, Div: p.div, CutDiv: p.cutDiv, Momentums: p.momentums(), OnCycleEnd: onEnd,
		})
	case "pct":
		return opt.NewTriangularPct(target, opt.TriangularPctConfig{
			Steps: steps, Div: p.div, Pct: p.pct, Momentums: p.momentums(), OnCycleEnd: onEnd,
		})
	default:
		return nil, fmt.Errorf("unknown policy: %s", p.name)
	}
}
