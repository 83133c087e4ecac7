package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/internos/internal/domain/rubric"
	"github.com/okian/internos/internal/domain/types"
)

type scoreFlags struct {
	remote  bool
	profile string
	weights []float64
}

func newScoreCmd(g *globalFlags) *cobra.Command {
	sf := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score <signals.json|->",
		Short: "Score a signal file",
		Long: "Score reads a JSON object of signal values, either bare or as {\"signals\": {...}},\n" +
			"and prints category and overall scores. Missing signals take their defaults.\n" +
			"Scoring is local unless --remote is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readScoreRequest(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if sf.profile != "" {
				req.Profile = sf.profile
			}

			var resp types.ScoreResponse
			if sf.remote {
				resp, err = g.client().ScoreSignals(cmd.Context(), req)
			} else {
				resp, err = scoreLocal(req, sf.weights)
			}
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), g.output)
			if done, err := p.json(resp); done {
				return err
			}
			p.signals("Signals", req.Signals)
			p.scores("Scores ("+resp.Profile+")", resp.Scores)
			if len(resp.Ignored) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "ignored unknown signals: %v\n", resp.Ignored)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&sf.remote, "remote", false, "Score on the server instead of locally")
	f.StringVar(&sf.profile, "profile", "", "Ticket-kind profile (remote only)")
	f.Float64SliceVar(&sf.weights, "weights", nil, "Local category weights: ship,quality,comm,reliability")
	return cmd
}

func readScoreRequest(stdin io.Reader, path string) (types.ScoreRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return types.ScoreRequest{}, fmt.Errorf("read signals: %w", err)
	}

	var req types.ScoreRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Signals == nil {
		var sig rubric.Signals
		if err := json.Unmarshal(data, &sig); err != nil {
			return types.ScoreRequest{}, fmt.Errorf("parse signals: %w", err)
		}
		req = types.ScoreRequest{Signals: sig}
	}
	return req, nil
}

func scoreLocal(req types.ScoreRequest, weights []float64) (types.ScoreResponse, error) {
	if err := rubric.ValidateSignals(req.Signals); err != nil {
		return types.ScoreResponse{}, err
	}
	var opts []rubric.Option
	if len(weights) > 0 {
		if len(weights) != 4 {
			return types.ScoreResponse{}, fmt.Errorf("--weights needs 4 values, got %d", len(weights))
		}
		opts = append(opts,
			rubric.WithName("custom"),
			rubric.WithWeights(rubric.Weights{Ship: weights[0], Quality: weights[1], Comm: weights[2], Reliability: weights[3]}),
		)
	}
	scorer, err := rubric.NewScorer(opts...)
	if err != nil {
		return types.ScoreResponse{}, err
	}

	full := scorer.Score(req.Signals)
	return types.ScoreResponse{
		Profile:    scorer.Name(),
		Scores:     full.Rounded(),
		FullScores: full,
		Ignored:    req.Signals.Unknown(),
	}, nil
}
