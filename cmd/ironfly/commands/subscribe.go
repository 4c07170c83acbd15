package commands

import (
	"fmt"
	"ironfly/internal/subscription"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <game> <chat id>",
	Short: "Subscribes a chat to a tracked game.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.registry.AddSubscriber(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if res == subscription.AddUnknownGame {
			return fmt.Errorf("%s is not tracked yet, start it from a chat first", args[0])
		}
		fmt.Printf("%s: %s\n", args[0], res)
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <game> <chat id>",
	Short: "Removes a chat from a game's subscribers.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.registry.RemoveSubscriber(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", args[0], res)
		return nil
	},
}
