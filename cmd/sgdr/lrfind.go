package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/GoSGDR/internal/net"
	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

var (
	findData     dataFlags
	findStartLR  float64
	findEndLR    float64
	findSteps    int
	findLinear   bool
	findMomentum float64
	findSkip     int
	findSkipEnd  int
	findOut      string
)

var lrfindCmd = &cobra.Command{
	Use:   "lrfind",
	Short: "Run a learning rate range test and suggest a baseline",
	Long: `Sweeps the learning rate from --start-lr to --end-lr over --steps batches
while training a linear model, stopping once the loss diverges.`,
	RunE: runLRFind,
}

func init() {
	findData.register(lrfindCmd.Flags())
	lrfindCmd.Flags().Float64Var(&findStartLR, "start-lr", 1e-5, "Learning rate at the start of the sweep")
	lrfindCmd.Flags().Float64Var(&findEndLR, "end-lr", 10, "Learning rate at the end of the sweep")
	lrfindCmd.Flags().IntVar(&findSteps, "steps", 100, "Batches in the sweep")
	lrfindCmd.Flags().BoolVar(&findLinear, "linear", false, "Sweep linearly instead of geometrically")
	lrfindCmd.Flags().Float64Var(&findMomentum, "momentum", 0.9, "Momentum during the sweep")
	lrfindCmd.Flags().IntVar(&findSkip, "skip-start", 10, "Samples ignored at the start of the curve")
	lrfindCmd.Flags().IntVar(&findSkipEnd, "skip-end", 5, "Samples ignored at the end of the curve")
	lrfindCmd.Flags().StringVar(&findOut, "out", "", "Write the lr/loss curve to this CSV file")
	rootCmd.AddCommand(lrfindCmd)
}

func runLRFind(cmd *cobra.Command, args []string) error {
	train, val, err := findData.load()
	if err != nil {
		return err
	}
	model := net.NewLinearModel(train.Features())
	sgd := opt.NewSGD(model.Groups(findStartLR, findMomentum, 0)...)
	trainer, err := net.NewLinearTrainer(model, sgd, train, val, findData.batchSize)
	if err != nil {
		return err
	}

	rt, err := opt.NewRangeTest(sgd, opt.RangeTestConfig{
		Steps:        findSteps,
		EndLR:        findEndLR,
		Linear:       findLinear,
		StopAtBudget: true,
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	bpe := trainer.BatchesPerEpoch()
	epochs := (findSteps + bpe) / bpe
	session, err := net.NewSession(net.SessionConfig{Epochs: epochs, BatchesPerEpoch: bpe}, rt)
	if err != nil {
		return err
	}
	res, err := session.Run(trainer)
	if err != nil {
		return err
	}

	sum := rt.Summary(findSkip, findSkipEnd, 0.98)
	slog.Info("Range test finished",
		"batches", res.Batches,
		"stopped", res.Stopped,
		"samples", sum.Steps,
		"min_loss", sum.MinLoss,
		"min_loss_lr", sum.MinLossLR,
		"steepest_lr", sum.SteepestLR)
	if sum.Steps == 0 {
		return fmt.Errorf("range test recorded %d samples, not enough after skipping %d+%d",
			len(rt.Samples()), findSkip, findSkipEnd)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "steepest descent lr: %.6g\nmin loss lr / 10:    %.6g\n",
		sum.SteepestLR, sum.MinLossLR/10)

	if findOut != "" {
		return writeCurve(findOut, rt.Report(findSkip, findSkipEnd, false))
	}
	return nil
}

func writeCurve(path string, rep opt.RangeReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{"lr", "loss"})
	for i, lr := range rep.LRs {
		w.Write([]string{
			strconv.FormatFloat(lr, 'g', -1, 64),
			strconv.FormatFloat(rep.Losses[i], 'g', -1, 64),
		})
	}
	w.Flush()
	err = w.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write curve: %w", err)
	}
	slog.Info("Curve written", "path", path, "points", len(rep.LRs))
	return nil
}
