package commands

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(gamesCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "Prints every tracked game.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		games, err := a.store.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Game", "Turn", "Waiting", "Subscribers", "Url"})
		for _, g := range games {
			t.AppendRow(table.Row{
				g.GameName,
				g.Turn,
				len(g.Waiting()),
				strings.Join(g.Subscribers, ", "),
				g.URL,
			})
		}
		t.Render()
		return nil
	},
}
