// Command internosctl is the operator client of the grading service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/internos/internal/client"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalFlags struct {
	server  string
	output  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "internosctl",
		Short:         "Operate the InternOS grading service",
		Long:          "internosctl starts and submits ticket attempts, reads stored metrics and\nrecruiter snapshots, and scores signal files offline.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_, err := parseMode(g.output)
			return err
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&g.server, "server", envOr("INTERNOS_SERVER", "http://localhost:9080"), "Service base URL")
	f.StringVarP(&g.output, "output", "o", "table", "Output format: table, markdown or json")
	f.DurationVar(&g.timeout, "timeout", 10*time.Minute, "Per-request timeout")

	root.AddCommand(
		newScoreCmd(g),
		newTicketsCmd(g),
		newStartCmd(g),
		newSubmitCmd(g),
		newMetricsCmd(g),
		newRecruiterCmd(g),
	)
	return root
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.server, client.WithTimeout(g.timeout))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
