package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/GoSGDR/internal/opt"
)

var (
	schedPolicy policyFlags
	schedLR     float64
	schedMom    float64
	schedSteps  int
	schedRows   int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the learning rate and momentum a policy produces per batch",
	RunE:  runSchedule,
}

func init() {
	schedPolicy.register(scheduleCmd.Flags())
	scheduleCmd.Flags().Float64Var(&schedLR, "lr", 0.1, "Baseline learning rate")
	scheduleCmd.Flags().Float64Var(&schedMom, "momentum", 0.9, "Initial momentum")
	scheduleCmd.Flags().IntVar(&schedSteps, "steps", 100, "Batches in the first cycle")
	scheduleCmd.Flags().IntVar(&schedRows, "batches", 0, "Batches to print (default: one cycle)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	sgd := opt.NewSGD(&opt.ParamGroup{LearningRate: schedLR, Momentum: schedMom})
	s, err := schedPolicy.build(sgd, schedSteps)
	if err != nil {
		return err
	}
	rows := schedRows
	if rows <= 0 {
		rows = schedSteps
	}
	slog.Info("Tabulating schedule", "policy", schedPolicy.name, "steps", schedSteps, "batches", rows)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "batch\tlr\tmomentum")
	if err := s.OnTrainBegin(); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		fmt.Fprintf(out, "%d\t%.8g\t%.6f\n", i, sgd.Groups[0].LearningRate, sgd.Groups[0].Momentum)
		if _, err := s.OnBatchEnd([]float64{0}); err != nil {
			return err
		}
	}
	return s.OnTrainEnd()
}
