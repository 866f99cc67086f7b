package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rl1809/pos-register/internal/config"
)

func newSalesCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Print the most recent recorded sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if opts.cfg.Inventory.Backend == config.BackendMemory {
				return fmt.Errorf("sales are not persisted with the %s backend", config.BackendMemory)
			}

			b, err := openBackend(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			sales, err := b.recorder.ListSales(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SALE\tCREATED\tLINES\tTOTAL")
			for _, s := range sales {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), len(s.Lines), s.Total.StringFixed(2))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sales to show")
	return cmd
}
