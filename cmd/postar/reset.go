package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [pool-key...]",
		Short: "Start a fresh cycle for the given pools (all when none given)",
		Long: `Reset discards the remaining items of a pool and reshuffles it.
Pool keys are "posts" and "media:<type>"; see "postar state".

Stop the daemon first: a running "postar run" keeps its own copy of the cycles
and writes it back on its next delivery, undoing the reset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pools, err := openPools(ctx, f)
			if err != nil {
				return err
			}
			defer pools.Close()

			if err := pools.Registry.Reset(ctx, args...); err != nil {
				return err
			}
			keys := args
			if len(keys) == 0 {
				keys = pools.Registry.Keys()
			}
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", k)
			}
			return nil
		},
	}
}
