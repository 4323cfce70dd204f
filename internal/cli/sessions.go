package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/qcal/pkg/model"
)

func newSessionsCmd() *cobra.Command {
	var (
		limit  int
		offset int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sessions [execution-id]",
		Short: "List stored sessions, or show one with its outcomes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				sess, err := st.GetSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if sess == nil {
					return fmt.Errorf("session %s not found", args[0])
				}
				if asJSON {
					return printJSON(cmd, sess)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s/%s  %s\n",
					sess.ExecutionID, sess.State, sess.Username, sess.ProjectID, sess.ChipID)
				for _, o := range sess.Outcomes {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-34s %-12s %-8s %s\n", o.TaskName, o.Target, o.State, o.ErrorKind)
				}
				return nil
			}

			sessions, total, err := st.ListSessions(cmd.Context(), model.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, sessions)
			}
			for _, sess := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s/%s  %s\n",
					sess.ExecutionID, sess.State, sess.Username, sess.ProjectID, sess.ChipID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d session(s)\n", len(sessions), total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "List offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
