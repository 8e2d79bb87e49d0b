package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStateCmd(f *rootFlags) *cobra.Command {
	var deliveries int
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print cycle progress per pool and recent deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pools, err := openPools(ctx, f)
			if err != nil {
				return err
			}
			defer pools.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POOL\tSIZE\tREMAINING")
			for _, st := range pools.Registry.Status(ctx) {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", st.Key, st.Size, st.Remaining)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if deliveries <= 0 {
				return nil
			}

			recs, err := pools.Store.RecentDeliveries(ctx, deliveries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tSLOT\tTYPE\tMEDIA\tOK\tERROR")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
					r.At.Format("2006-01-02 15:04:05"), r.Trigger, r.PostType, r.Media, r.OK, r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&deliveries, "deliveries", "d", 0, "also print the last N deliveries")
	return cmd
}
