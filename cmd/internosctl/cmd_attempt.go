package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/internos/internal/domain/types"
)

func newStartCmd(g *globalFlags) *cobra.Command {
	var req types.StartRequest
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an attempt on a ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := g.client().StartTicket(cmd.Context(), req)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(resp); done {
				return err
			}
			p.table("Attempt started", table.Row{"Attempt", "Repository"},
				[]table.Row{{resp.AttemptID, resp.RepoPath}})
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Handle, "handle", "", "Candidate handle (required)")
	f.Int64Var(&req.TicketID, "ticket", 0, "Ticket ID (required)")
	_ = cmd.MarkFlagRequired("handle")
	_ = cmd.MarkFlagRequired("ticket")
	return cmd
}

type submitFlags struct {
	req            types.SubmitRequest
	standupFile    string
	postmortemFile string
	prBodyFile     string
}

func newSubmitCmd(g *globalFlags) *cobra.Command {
	sf := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an attempt for grading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, in := range []struct {
				path string
				dst  *string
			}{
				{sf.standupFile, &sf.req.StandupText},
				{sf.postmortemFile, &sf.req.PostmortemText},
				{sf.prBodyFile, &sf.req.PRBody},
			} {
				if in.path == "" {
					continue
				}
				data, err := os.ReadFile(in.path)
				if err != nil {
					return fmt.Errorf("read %s: %w", in.path, err)
				}
				*in.dst = string(data)
			}

			resp, err := g.client().Submit(cmd.Context(), sf.req)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(resp); done {
				return err
			}

			rows := make([]table.Row, 0, len(resp.Readings))
			for _, r := range resp.Readings {
				rows = append(rows, table.Row{r.Key, fmtValue(r.Value), r.Status, r.Reason})
			}
			p.table("Signals", table.Row{"Signal", "Value", "Status", "Reason"}, rows, 2)
			p.scores(fmt.Sprintf("Attempt %d %s (%s)", resp.AttemptID, resp.Status, resp.Profile), resp.Scores)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&sf.req.AttemptID, "attempt", 0, "Attempt ID (required)")
	f.StringVar(&sf.req.PRURL, "pr-url", "", "Pull request URL")
	f.StringVar(&sf.req.PRBody, "pr-body", "", "Pull request description")
	f.StringVar(&sf.prBodyFile, "pr-body-file", "", "Read the pull request description from a file")
	f.StringVar(&sf.req.StandupText, "standup", "", "Stand-up note")
	f.StringVar(&sf.standupFile, "standup-file", "", "Read the stand-up note from a file")
	f.StringVar(&sf.req.PostmortemText, "postmortem", "", "Postmortem text")
	f.StringVar(&sf.postmortemFile, "postmortem-file", "", "Read the postmortem from a file")
	_ = cmd.MarkFlagRequired("attempt")
	return cmd
}

func newMetricsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <attempt-id>",
		Short: "Show the stored metric rows of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("attempt id must be a positive integer: %q", args[0])
			}
			resp, err := g.client().AttemptMetrics(cmd.Context(), id)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(resp); done {
				return err
			}

			rows := make([]table.Row, 0, len(resp.Metrics))
			for _, m := range resp.Metrics {
				note := ""
				if st, ok := m.Extra["status"]; ok {
					note = fmt.Sprint(st)
					if reason, ok := m.Extra["reason"]; ok {
						note += " (" + fmt.Sprint(reason) + ")"
					}
				}
				rows = append(rows, table.Row{m.Key, fmtValue(m.Value), note})
			}
			p.table(fmt.Sprintf("Attempt %d %s", resp.AttemptID, resp.Status), table.Row{"Key", "Value", "Status"}, rows, 2)

			if len(resp.Artifacts) > 0 {
				arts := make([]table.Row, 0, len(resp.Artifacts))
				for _, a := range resp.Artifacts {
					arts = append(arts, table.Row{a.Kind, a.URL, truncate(a.Note, 60)})
				}
				p.table("Artifacts", table.Row{"Kind", "URL", "Note"}, arts)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
