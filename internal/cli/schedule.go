package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/session"
	"github.com/me/qcal/pkg/model"
)

func newScheduleCmd() *cobra.Command {
	var (
		strategy       string
		targets        []string
		oneQubit       bool
		maxParallelOps int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <topology.yaml>",
		Short: "Preview a staged calibration plan from a topology snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := parser.New(logger).LoadTopology(args[0])
			if err != nil {
				return err
			}

			var allowed []model.QubitID
			for _, t := range targets {
				allowed = append(allowed, model.QubitID(t))
			}

			if oneQubit {
				plan, err := session.BuildOneQubitPlan(topo, allowed)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, plan)
				}
				for _, stage := range plan.Stages {
					fmt.Fprintf(cmd.OutOrStdout(), "stage %d [%s]: %s\n",
						stage.StageIndex, stage.ChannelClass, model.JoinQubits(stage.Qubits))
				}
				return nil
			}

			cfg := config.DefaultEngineConfig()
			if maxParallelOps >= 0 {
				cfg.MaxParallelOps = maxParallelOps
			}
			plan, err := session.BuildCouplingPlan(topo, allowed, strategy, cfg, logger)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, plan)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "strategy: %s\n", plan.Strategy)
			for _, stat := range plan.FilterStats {
				fmt.Fprintf(cmd.OutOrStdout(), "filter %-26s %d -> %d\n", stat.Name, stat.InputCount, stat.OutputCount)
			}
			for _, stage := range plan.Stages {
				keys := make([]string, len(stage.Pairs))
				for i, p := range stage.Pairs {
					keys[i] = p.Key()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stage %d: %s\n", stage.Index, strings.Join(keys, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Scheduling strategy (mux_conflict, intra_then_inter)")
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "Restrict candidates to these qubits")
	cmd.Flags().BoolVar(&oneQubit, "one-qubit", false, "Build the one-qubit box-staged plan instead")
	cmd.Flags().IntVar(&maxParallelOps, "max-parallel-ops", -1, "Cap pairs per stage (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the plan as JSON")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
