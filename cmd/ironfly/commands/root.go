package commands

import (
	"fmt"
	"ironfly/internal/components/telemetry"
	"ironfly/lib/serviceutil"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ironfly",
	Short: "ironfly watches Dominions 6 games and tells Telegram chats when turns change.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigName, "The config file (json5), <name>.local.json5 is merged over it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

func Execute() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
