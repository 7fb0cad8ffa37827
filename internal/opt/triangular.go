package opt

// TriangularConfig configures TriangularCyclic.
type TriangularConfig struct {
	// Steps is the cycle length in batches.
	Steps int
	// Div is the ratio between the peak and the lowest learning rate.
	Div float64
	// CutDiv places the peak at Steps/CutDiv (integer division).
	CutDiv int
	// Momentums, when set, holds {high, low}: high is used where the learning
	// rate is lowest and low at the peak. Nil leaves momentum untouched.
	Momentums  []float64
	OnCycleEnd CycleEndFunc
}

func (c TriangularConfig) Validate() error {
	if c.Steps <= 0 {
		return configErr("Steps", "must be > 0, got %d", c.Steps)
	}
	if c.Div <= 0 {
		return configErr("Div", "must be > 0, got %g", c.Div)
	}
	if c.CutDiv <= 0 {
		return configErr("CutDiv", "must be > 0, got %d", c.CutDiv)
	}
	if c.Steps/c.CutDiv == 0 {
		return configErr("CutDiv", "%d leaves no rising phase in a %d step cycle", c.CutDiv, c.Steps)
	}
	return validateMomentums(c.Momentums)
}

func validateMomentums(moms []float64) error {
	if moms != nil && len(moms) != 2 {
		return configErr("Momentums", "must hold exactly 2 values, got %d", len(moms))
	}
	return nil
}

// TriangularCyclic rises linearly from baseline/Div to baseline over the
// first Steps/CutDiv batches, then falls linearly back over the rest of the
// cycle.
type TriangularCyclic struct {
	updater
	cycle  CycleTracker
	div    float64
	cutDiv int
	moms   []float64
}

// NewTriangularCyclic creates a fixed cut-point triangular schedule.
func NewTriangularCyclic(target HyperparamTarget, cfg TriangularConfig) (*TriangularCyclic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := newUpdater(target, cfg.Momentums != nil)
	if err != nil {
		return nil, err
	}
	t := &TriangularCyclic{
		updater: u,
		cycle:   newCycleTracker(cfg.Steps, 1, cfg.OnCycleEnd),
		div:     cfg.Div,
		cutDiv:  cfg.CutDiv,
		moms:    append([]float64(nil), cfg.Momentums...),
	}
	t.policy = t
	return t, nil
}

func (t *TriangularCyclic) OnTrainBegin() error {
	t.cycle.Reset()
	return t.updater.OnTrainBegin()
}

// Cycle returns the current cycle position.
func (t *TriangularCyclic) Cycle() CycleTracker { return t.cycle }

func (t *TriangularCyclic) cutPoint() int { return t.cycle.Length / t.cutDiv }

func (t *TriangularCyclic) CalcLR(baseline []float64) []float64 {
	nb, cut, it := float64(t.cycle.Length), t.cutPoint(), t.cycle.Iter
	var pct float64
	if it > cut {
		pct = 1 - float64(it-cut)/(nb-float64(cut))
	} else {
		pct = float64(it) / float64(cut)
	}
	res := scaled(baseline, (1+pct*(t.div-1))/t.div)
	t.cycle.Advance(t)
	return res
}

// CalcMomentum mirrors CalcLR between the configured bounds. It reads the
// position already advanced by CalcLR.
func (t *TriangularCyclic) CalcMomentum() []float64 {
	if t.moms == nil {
		return nil
	}
	nb, cut, it := float64(t.cycle.Length), t.cutPoint(), t.cycle.Iter
	var pct float64
	if it > cut {
		pct = float64(it-cut) / (nb - float64(cut))
	} else {
		pct = 1 - float64(it)/float64(cut)
	}
	return filled(len(t.baseline), t.moms[1]+pct*(t.moms[0]-t.moms[1]))
}

// TriangularPctConfig configures TriangularPct.
type TriangularPctConfig struct {
	Steps int
	Div   float64
	// Pct is the percentage of the cycle spent annealing below baseline/Div
	// after the triangle.
	Pct        float64
	Momentums  []float64
	OnCycleEnd CycleEndFunc
}

func (c TriangularPctConfig) phaseLen() int {
	return int(float64(c.Steps) * (1 - c.Pct/100) / 2)
}

func (c TriangularPctConfig) Validate() error {
	if c.Steps <= 0 {
		return configErr("Steps", "must be > 0, got %d", c.Steps)
	}
	if c.Div <= 0 {
		return configErr("Div", "must be > 0, got %g", c.Div)
	}
	if c.Pct < 0 || c.Pct >= 100 {
		return configErr("Pct", "must be in [0, 100), got %g", c.Pct)
	}
	if c.phaseLen() == 0 {
		return configErr("Pct", "%g leaves no ramp in a %d step cycle", c.Pct, c.Steps)
	}
	return validateMomentums(c.Momentums)
}

// TriangularPct runs three phases per cycle: a linear ramp from baseline/Div
// to baseline, a linear ramp back down, and a final anneal well below
// baseline/Div over the last Pct percent of the cycle.
type TriangularPct struct {
	updater
	cycle CycleTracker
	div   float64
	phase int
	moms  []float64
}

// NewTriangularPct creates a percentage-based triangular schedule.
func NewTriangularPct(target HyperparamTarget, cfg TriangularPctConfig) (*TriangularPct, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := newUpdater(target, cfg.Momentums != nil)
	if err != nil {
		return nil, err
	}
	t := &TriangularPct{
		updater: u,
		cycle:   newCycleTracker(cfg.Steps, 1, cfg.OnCycleEnd),
		div:     cfg.Div,
		phase:   cfg.phaseLen(),
		moms:    append([]float64(nil), cfg.Momentums...),
	}
	t.policy = t
	return t, nil
}

func (t *TriangularPct) OnTrainBegin() error {
	t.cycle.Reset()
	return t.updater.OnTrainBegin()
}

// Cycle returns the current cycle position.
func (t *TriangularPct) Cycle() CycleTracker { return t.cycle }

// PhaseLen is the length of each of the two ramps.
func (t *TriangularPct) PhaseLen() int { return t.phase }

func (t *TriangularPct) CalcLR(baseline []float64) []float64 {
	nb, cn, it := t.cycle.Length, t.phase, t.cycle.Iter
	var factor float64
	switch {
	case it > 2*cn:
		pct := float64(it-2*cn) / float64(nb-2*cn)
		factor = (1 + pct*(1-100)/100) / t.div
	case it > cn:
		pct := 1 - float64(it-cn)/float64(cn)
		factor = (1 + pct*(t.div-1)) / t.div
	default:
		pct := float64(it) / float64(cn)
		factor = (1 + pct*(t.div-1)) / t.div
	}
	res := scaled(baseline, factor)
	t.cycle.Advance(t)
	return res
}

// CalcMomentum mirrors the two ramps and holds the high bound during the
// final anneal. It reads the position already advanced by CalcLR.
func (t *TriangularPct) CalcMomentum() []float64 {
	if t.moms == nil {
		return nil
	}
	cn, it := t.phase, t.cycle.Iter
	var mom float64
	switch {
	case it > 2*cn:
		mom = t.moms[0]
	case it > cn:
		pct := 1 - float64(it-cn)/float64(cn)
		mom = t.moms[0] + pct*(t.moms[1]-t.moms[0])
	default:
		pct := float64(it) / float64(cn)
		mom = t.moms[0] + pct*(t.moms[1]-t.moms[0])
	}
	return filled(len(t.baseline), mom)
}
