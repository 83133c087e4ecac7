package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRecruiterCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recruiter <handle>",
		Short: "Build the recruiter snapshot of a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := g.client().RecruiterSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(view); done {
				return err
			}

			s := view.Snapshot
			p.table("Candidate "+view.Handle, table.Row{"Attempts", "Tickets shipped", "Generated"},
				[]table.Row{{s.Attempts, s.TicketsShipped, s.GeneratedAt.Format("2006-01-02 15:04:05Z07:00")}}, 1, 2)
			if s.Attempts == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no graded attempts yet")
				return nil
			}
			p.signals("Summary", s.Summary)
			p.scores("Scores", s.Scores)
			return nil
		},
	}
}
