package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"postar/internal/app"
	"postar/internal/config"
	logx "postar/pkg/logx"
)

type rootFlags struct {
	configPath string
}

// newRootCmd builds the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "postar",
		Short: "postar - scheduled no-repeat Telegram poster",
		Long: `postar posts one text and one media file to a Telegram chat at configured
times of day. Every post and file is used once per cycle before any repeats.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "./config.json", "path to config file (.json, .yaml, .toml)")

	root.AddCommand(newRunCmd(f))
	root.AddCommand(newCheckCmd(f))
	root.AddCommand(newStateCmd(f))
	root.AddCommand(newResetCmd(f))
	return root
}

// openPools loads and validates the config, then opens content and state without
// touching the network.
func openPools(ctx context.Context, f *rootFlags) (*config.Config, *app.Pools, error) {
	cfg, err := config.NewManager(f.configPath).Load()
	if err != nil {
		return nil, nil, err
	}
	pools, err := app.OpenPools(ctx, cfg, afero.NewOsFs(), logx.NewConsole("WARN"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pools, nil
}
