package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status BATCH",
		Short: "Show upload statuses of a batch (requires STATUS_STORE=redis)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			if d.cfg.StatusStore != "redis" {
				return fmt.Errorf("status needs a shared store, got STATUS_STORE=%q", d.cfg.StatusStore)
			}

			store, err := d.newStatusStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSTATE\tSIZE\tUPDATED\tERROR")
			for _, st := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", st.Key, st.State, st.Size, st.UpdatedAt.Format("15:04:05"), st.Error)
			}
			return w.Flush()
		},
	}
}
