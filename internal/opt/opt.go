// Package opt provides the hyperparameter scheduling policies and the
// optimizer surface they drive.
package opt

import "gonum.org/v1/gonum/floats"

// HyperparamTarget holds one learning rate, momentum and weight decay per
// parameter group. Vectors are ordered by group and must match the order of
// any baseline captured from the same target.
type HyperparamTarget interface {
	LearningRates() []float64
	SetLearningRates(lrs []float64)
	Momentums() []float64
	SetMomentums(moms []float64)
	WeightDecays() []float64
	SetWeightDecays(wds []float64)
}

// ParamSource exposes the parameter values of each group. It is needed only
// by policies that touch weights directly (decoupled weight decay).
type ParamSource interface {
	ParamGroups() []*ParamGroup
}

// Param is a single parameter tensor, flattened.
// A nil Grad means the parameter received no gradient this step.
type Param struct {
	Data []float64
	Grad []float64
}

// ParamGroup is a set of parameters sharing the same hyperparameters.
type ParamGroup struct {
	Params       []*Param
	LearningRate float64
	Momentum     float64
	WeightDecay  float64

	velocity [][]float64
}

// SGD is stochastic gradient descent with momentum and L2 weight decay,
// configured per parameter group.
type SGD struct {
	Groups []*ParamGroup
}

// NewSGD creates an SGD optimizer over the given groups.
func NewSGD(groups ...*ParamGroup) *SGD {
	return &SGD{Groups: groups}
}

// Step applies one update to every parameter that has a gradient:
//
//	v = mom*v + (grad + wd*p)
//	p = p - lr*v
func (s *SGD) Step() {
	for _, g := range s.Groups {
		if len(g.velocity) != len(g.Params) {
			g.velocity = make([][]float64, len(g.Params))
		}
		for i, p := range g.Params {
			if p.Grad == nil {
				continue
			}
			v := g.velocity[i]
			if len(v) != len(p.Data) {
				v = make([]float64, len(p.Data))
				g.velocity[i] = v
			}
			floats.Scale(g.Momentum, v)
			floats.Add(v, p.Grad)
			if g.WeightDecay != 0 {
				floats.AddScaled(v, g.WeightDecay, p.Data)
			}
			floats.AddScaled(p.Data, -g.LearningRate, v)
		}
	}
}

// ZeroGrad clears every gradient buffer without dropping it.
func (s *SGD) ZeroGrad() {
	for _, g := range s.Groups {
		for _, p := range g.Params {
			if p.Grad != nil {
				floats.Scale(0, p.Grad)
			}
		}
	}
}

// ParamGroups implements ParamSource.
func (s *SGD) ParamGroups() []*ParamGroup { return s.Groups }

func (s *SGD) LearningRates() []float64 {
	out := make([]float64, len(s.Groups))
	for i, g := range s.Groups {
		out[i] = g.LearningRate
	}
	return out
}

func (s *SGD) SetLearningRates(lrs []float64) {
	for i, g := range s.Groups {
		g.LearningRate = lrs[i]
	}
}

func (s *SGD) Momentums() []float64 {
	out := make([]float64, len(s.Groups))
	for i, g := range s.Groups {
		out[i] = g.Momentum
	}
	return out
}

func (s *SGD) SetMomentums(moms []float64) {
	for i, g := range s.Groups {
		g.Momentum = moms[i]
	}
}

func (s *SGD) WeightDecays() []float64 {
	out := make([]float64, len(s.Groups))
	for i, g := range s.Groups {
		out[i] = g.WeightDecay
	}
	return out
}

func (s *SGD) SetWeightDecays(wds []float64) {
	for i, g := range s.Groups {
		g.WeightDecay = wds[i]
	}
}
