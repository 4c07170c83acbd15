package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks every subscribed game once, notifies the subscribers and exits.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		bot, err := a.telegram()
		if err != nil {
			return err
		}
		mon, err := a.monitor(a.fetcher(), bot)
		if err != nil {
			return err
		}

		report, err := mon.CheckAll(cmd.Context())
		if err != nil {
			return err
		}
		slog.Info(
			"done",
			"checked", report.Checked,
			"skipped", report.Skipped,
			"stopped", report.Stopped,
			"failed", report.Failed,
			"notified", report.Notified,
		)
		return nil
	},
}
