package commands

import (
	chatcommands "ironfly/internal/commands"
	"ironfly/internal/components/chrono"
	"ironfly/internal/daemon"
	"log/slog"

	"github.com/spf13/cobra"
)

var runMinutes float64

func init() {
	runCmd.Flags().Float64VarP(&runMinutes, "minutes", "m", 0, "Check the subscribed games every X minutes (at least 1), overrides the config.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [-m <minutes>]",
	Short: "Answers chat commands and checks the subscribed games periodically.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("minutes") {
			c.CheckIntervalMinutes = runMinutes
			c.CheckCron = ""
		}

		a, err := newAppFromConfig(cmd.Context(), c)
		if err != nil {
			return err
		}
		defer a.Close()

		bot, err := a.telegram()
		if err != nil {
			return err
		}
		fetcher := a.fetcher()
		mon, err := a.monitor(fetcher, bot)
		if err != nil {
			return err
		}
		handler := chatcommands.NewHandler(a.registry, fetcher, bot, a.config.BaseGameURL, a.tel)

		schedule, err := a.config.Schedule()
		if err != nil {
			return err
		}
		if schedule == nil {
			slog.Warn("periodic checks are disabled, only answering commands")
		}

		a.serveMetrics(cmd.Context())

		d := daemon.New(
			bot,
			handler,
			mon,
			daemon.Options{
				PollInterval: a.config.PollInterval(),
				Schedule:     schedule,
			},
			chrono.NewStandardTime(),
			a.tel,
		)
		slog.Info("🦟 the iron fly is listening...")
		d.Run(cmd.Context())
		slog.Info("stopped")
		return nil
	},
}
