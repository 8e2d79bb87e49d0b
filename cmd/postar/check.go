package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postar/internal/app"
	"postar/internal/config"
	"postar/internal/schedule"
)

func newCheckCmd(f *rootFlags) *cobra.Command {
	var upcoming int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and content, then print the upcoming schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pools, err := openPools(ctx, f)
			if err != nil {
				return err
			}
			defer pools.Close()

			plan, err := app.BuildPlan(cfg.Schedule, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s ok\n", f.configPath)
			fmt.Fprintf(out, "posts: %d (types: %s)\n", len(pools.Library.Posts), strings.Join(pools.Library.Types(), ", "))
			for _, typ := range pools.Library.Types() {
				fmt.Fprintf(out, "media %s: %d files in %s\n", typ, len(pools.Library.Media[typ]), pools.Library.Dirs[typ])
			}

			days := strings.Join(schedule.DayNames(plan.Days), ", ")
			if config.NormalizeDaysMode(cfg.Schedule.Days.Mode) == config.DaysRandom {
				days += " (random sample; resampled on every start)"
			}
			fmt.Fprintf(out, "days: %s\n", days)
			fmt.Fprintf(out, "zone: %s\n", plan.Location)

			if cfg.Schedule.TestMode {
				fmt.Fprintf(out, "test mode: every %s\n", cfg.Schedule.TestIntervalOrDefault())
				return nil
			}
			coord, err := schedule.New(plan.Entries, func(context.Context, schedule.Fire) error { return nil },
				schedule.Options{Location: plan.Location})
			if err != nil {
				return err
			}
			for _, u := range coord.Preview(time.Now(), upcoming) {
				fmt.Fprintf(out, "next %s: %s .. %s\n", u.Label,
					u.Earliest.Format("Mon 2006-01-02 15:04"), u.Latest.Format("15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&upcoming, "upcoming", "n", 5, "number of upcoming windows to print")
	return cmd
}
