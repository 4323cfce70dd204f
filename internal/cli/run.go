package cli

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/me/qcal/internal/backend"
	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/coord"
	"github.com/me/qcal/internal/lifecycle"
	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/session"
	"github.com/me/qcal/internal/tasks"
)

func newRunCmd() *cobra.Command {
	var (
		username string
		project  string
		note     string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run <topology.yaml> <flow.yaml>",
		Short: "Execute a calibration flow locally against the simulator backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := parser.New(logger)
			topo, err := p.LoadTopology(args[0])
			if err != nil {
				return err
			}
			flow, err := p.LoadFlow(args[1])
			if err != nil {
				return err
			}

			if username == "" {
				u, err := user.Current()
				if err != nil {
					return fmt.Errorf("cannot determine username, use --username: %w", err)
				}
				username = u.Username
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			factories := backend.NewFactories(logger)
			factories.Register("sim", backend.SimFactory)
			registry := tasks.NewRegistry(logger)
			tasks.RegisterDefaults(registry, flow.Backend)

			cfg := config.DefaultEngineConfig()
			runner := session.NewRunner(cfg, st,
				coord.New(st, logger),
				lifecycle.NewEngine(cfg, st, logger),
				factories, registry, logger)

			sess, runErr := runner.Run(cmd.Context(), session.Request{
				Username:  username,
				ProjectID: project,
				Note:      note,
				Topology:  topo,
				Flow:      flow,
			})
			if sess != nil {
				if asJSON {
					if err := printJSON(cmd, sess); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "execution %s: %s\n", sess.ExecutionID, sess.State)
					for _, o := range sess.Outcomes {
						if o.ErrorKind != "" {
							fmt.Fprintf(cmd.OutOrStdout(), "  %-34s %-12s %-8s %s\n", o.TaskName, o.Target, o.State, o.ErrorKind)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "  %-34s %-12s %s\n", o.TaskName, o.Target, o.State)
						}
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Session owner (default: current OS user)")
	cmd.Flags().StringVar(&project, "project", "default", "Project id for session locking")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note stored on the session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the session summary as JSON")
	return cmd
}
