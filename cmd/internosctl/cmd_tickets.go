package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTicketsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tickets",
		Short: "List the ticket catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tickets, err := g.client().Tickets(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(tickets); done {
				return err
			}
			rows := make([]table.Row, 0, len(tickets))
			for _, t := range tickets {
				profile := "default"
				if t.Rubric != nil {
					profile = "override"
				}
				rows = append(rows, table.Row{t.ID, t.Kind, t.Title, strconv.Itoa(t.TimeLimitMinutes) + "m", profile})
			}
			p.table("Tickets", table.Row{"ID", "Kind", "Title", "Limit", "Rubric"}, rows, 1, 4)
			return nil
		},
	}
}
