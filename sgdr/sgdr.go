// Package sgdr re-exports the scheduling engine for use outside this module.
package sgdr

import (
	"io"
	"log/slog"

	"github.com/FlavioCFOliveira/GoSGDR/internal/net"
	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

// Re-export common types for easier access
type (
	Scheduler        = opt.Scheduler
	HyperparamTarget = opt.HyperparamTarget
	CycleEndFunc     = opt.CycleEndFunc
	Sample           = opt.Sample
	Summary          = opt.Summary

	SGD        = opt.SGD
	ParamGroup = opt.ParamGroup
	Param      = opt.Param

	CosineConfig        = opt.CosineConfig
	TriangularConfig    = opt.TriangularConfig
	TriangularPctConfig = opt.TriangularPctConfig
	RangeTestConfig     = opt.RangeTestConfig
	WeightDecayConfig   = opt.WeightDecayConfig

	ConfigError = opt.ConfigError
	StateError  = opt.StateError

	Callback      = net.Callback
	Trainer       = net.Trainer
	Session       = net.Session
	SessionConfig = net.SessionConfig
	Result        = net.Result
	Saver         = net.Saver
	DecaySource   = net.DecaySource
)

// Error sentinels
var (
	ErrConfig = opt.ErrConfig
	ErrState  = opt.ErrState
)

// Optimizer
func NewSGD(groups ...*ParamGroup) *SGD {
	return opt.NewSGD(groups...)
}

// Schedules
func CosineAnnealing(target HyperparamTarget, cfg CosineConfig) (*opt.CosineAnnealing, error) {
	return opt.NewCosineAnnealing(target, cfg)
}

func Triangular(target HyperparamTarget, cfg TriangularConfig) (*opt.TriangularCyclic, error) {
	return opt.NewTriangularCyclic(target, cfg)
}

func TriangularPct(target HyperparamTarget, cfg TriangularPctConfig) (*opt.TriangularPct, error) {
	return opt.NewTriangularPct(target, cfg)
}

func RangeTest(target HyperparamTarget, cfg RangeTestConfig) (*opt.RangeTest, error) {
	return opt.NewRangeTest(target, cfg)
}

func WeightDecayNormalizer(target opt.DecayTarget, cfg WeightDecayConfig) (*opt.WeightDecayNormalizer, error) {
	return opt.NewWeightDecayNormalizer(target, cfg)
}

// SmoothCurve returns the bias-corrected exponential moving average of vals.
func SmoothCurve(vals []float64, beta float64) []float64 {
	return opt.SmoothCurve(vals, beta)
}

// Session and callbacks
func NewSession(cfg SessionConfig, callbacks ...Callback) (*Session, error) {
	return net.NewSession(cfg, callbacks...)
}

func BestCheckpoint(saver Saver, name string, withMetric bool, logger *slog.Logger) *net.BestCheckpoint {
	return net.NewBestCheckpoint(saver, name, withMetric, logger)
}

func EarlyStopping(patience int, threshold float64, logger *slog.Logger) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, threshold, logger)
}

func CSVLogger(filename string, append bool, target HyperparamTarget) *net.CSVLogger {
	return net.NewCSVLogger(filename, append, target)
}

func EventLogger(w io.Writer) *net.EventLogger {
	return net.NewEventLogger(w)
}
