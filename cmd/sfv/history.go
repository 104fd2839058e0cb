package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs recorded in the session file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.sess.History) == 0 {
				cmd.Println("no history")
				return nil
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"When", "Kind", "Inputs", "Summary"})
			for _, e := range a.sess.History {
				tbl.AppendRow(table.Row{
					e.When.Format("2006-01-02 15:04:05"),
					e.Kind,
					strings.Join(e.Inputs, ", "),
					e.Summary,
				})
			}
			tbl.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the recorded history",
		RunE: func(*cobra.Command, []string) error {
			a.sess.ClearHistory()
			a.saveSession()
			return nil
		},
	})
	return cmd
}
