package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/GoSGDR/internal/loss"
	"github.com/FlavioCFOliveira/GoSGDR/internal/net"
	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

var (
	fitData        dataFlags
	fitPolicy      policyFlags
	fitLR          float64
	fitMomentum    float64
	fitWD          float64
	fitCycleLen    int
	fitCycles      int
	fitRawWD       bool
	fitCheckpoint  string
	fitWithMetric  bool
	fitCSVLog      string
	fitEvents      string
	fitPatience    int
	fitLogInterval int
	fitLoss        string
	fitHuberDelta  float64
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Train a linear model under a cyclic schedule",
	Long: `Trains a linear model with SGD for --cycles cycles of the selected policy.
Weight decay is applied after each step and normalized by the cycle length
unless --raw-wd is set. The best epoch is checkpointed when --checkpoint-dir
is given.`,
	RunE: runFit,
}

func init() {
	fitData.register(fitCmd.Flags())
	fitPolicy.register(fitCmd.Flags())
	fitCmd.Flags().Float64Var(&fitLR, "lr", 0.1, "Baseline learning rate")
	fitCmd.Flags().Float64Var(&fitMomentum, "momentum", 0.9, "Momentum")
	fitCmd.Flags().Float64Var(&fitWD, "wd", 0.025, "Weight decay of the weight group")
	fitCmd.Flags().IntVar(&fitCycleLen, "cycle-len", 1, "Epochs in the first cycle")
	fitCmd.Flags().IntVar(&fitCycles, "cycles", 3, "Number of cycles")
	fitCmd.Flags().BoolVar(&fitRawWD, "raw-wd", false, "Apply weight decay without normalization")
	fitCmd.Flags().StringVar(&fitCheckpoint, "checkpoint-dir", "", "Directory for the best checkpoint")
	fitCmd.Flags().BoolVar(&fitWithMetric, "checkpoint-r2", false, "Select the best epoch by R² instead of loss")
	fitCmd.Flags().StringVar(&fitCSVLog, "csv-log", "", "Write per-batch hyperparameters and loss to this CSV file")
	fitCmd.Flags().StringVar(&fitEvents, "events", "", "Write a lifecycle event log to this file")
	fitCmd.Flags().IntVar(&fitPatience, "patience", 0, "Stop after this many epochs without improvement (0 disables)")
	fitCmd.Flags().IntVar(&fitLogInterval, "log-interval", 1, "Log epoch metrics every N epochs")
	fitCmd.Flags().StringVar(&fitLoss, "loss", "mse", "Training loss: mse, huber, l1")
	fitCmd.Flags().Float64Var(&fitHuberDelta, "huber-delta", 1, "Huber loss threshold")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	train, val, err := fitData.load()
	if err != nil {
		return err
	}
	model := net.NewLinearModel(train.Features())
	sgd := opt.NewSGD(model.Groups(fitLR, fitMomentum, fitWD)...)
	trainer, err := net.NewLinearTrainer(model, sgd, train, val, fitData.batchSize)
	if err != nil {
		return err
	}
	if trainer.Loss, err = loss.ByName(fitLoss, fitHuberDelta); err != nil {
		return err
	}
	bpe := trainer.BatchesPerEpoch()

	// The learning rate cycles and the weight decay plan share one epoch
	// layout; non-cosine policies keep a fixed cycle length.
	mult := fitPolicy.mult
	if fitPolicy.name != "cosine" {
		mult = 1
	}
	if mult < 1 {
		mult = 1
	}
	epochs := len(opt.EpochCycleLengths(fitCycleLen, mult, fitCycles))

	wd, err := opt.NewWeightDecayNormalizer(sgd, opt.WeightDecayConfig{
		BatchesPerEpoch: bpe,
		CycleLen:        fitCycleLen,
		CycleMult:       mult,
		Cycles:          fitCycles,
		Normalize:       !fitRawWD,
	})
	if err != nil {
		return err
	}
	sched, err := fitPolicy.build(sgd, fitCycleLen*bpe)
	if err != nil {
		return err
	}

	// Decay reads the pre-step weights, so it is registered before the
	// schedule changes the learning rate for the next step.
	callbacks := []net.Callback{wd, sched, &net.Logger{Interval: fitLogInterval, Log: slog.Default()}}

	if fitCheckpoint != "" {
		if err := os.MkdirAll(fitCheckpoint, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint dir: %w", err)
		}
		saver := &net.FileSaver{Dir: fitCheckpoint, Source: sgd}
		callbacks = append(callbacks, net.NewBestCheckpoint(saver, "best", fitWithMetric, slog.Default()))
	}
	if fitCSVLog != "" {
		csvLog := net.NewCSVLogger(fitCSVLog, false, sgd)
		csvLog.Decay = wd
		callbacks = append(callbacks, csvLog)
	}
	if fitEvents != "" {
		f, err := os.Create(fitEvents)
		if err != nil {
			return fmt.Errorf("failed to create event log: %w", err)
		}
		defer f.Close()
		callbacks = append(callbacks, net.NewEventLogger(f))
	}
	if fitPatience > 0 {
		callbacks = append(callbacks, net.NewEarlyStopping(fitPatience, 0, slog.Default()))
	}

	slog.Info("Starting training",
		"policy", fitPolicy.name,
		"loss", fitLoss,
		"epochs", epochs,
		"batches_per_epoch", bpe,
		"lr", fitLR,
		"wd", fitWD,
		"normalized_wd", !fitRawWD)

	session, err := net.NewSession(net.SessionConfig{Epochs: epochs, BatchesPerEpoch: bpe}, callbacks...)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := session.Run(trainer)
	if err != nil {
		return err
	}

	evalSet := val
	if evalSet.Len() == 0 {
		evalSet = train
	}
	mse, r2 := trainer.Evaluate(evalSet)
	slog.Info("Training complete",
		"epochs", res.Epochs,
		"batches", res.Batches,
		"stopped", res.Stopped,
		"elapsed", time.Since(start).String())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mse: %.6g\nr2:  %.6f\n", mse, r2)
	fmt.Fprintf(out, "weights: %v\nbias:    %.6g\n", model.Weights.Data, model.Bias.Data[0])
	if fitCheckpoint != "" {
		fmt.Fprintf(out, "checkpoint: %s\n", filepath.Join(fitCheckpoint, "best.gob"))
	}
	return nil
}
