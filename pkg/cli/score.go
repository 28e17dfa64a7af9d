package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mchmarny/fragility/pkg/data"
	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/model"
	"github.com/mchmarny/fragility/pkg/risk"
	"github.com/mchmarny/fragility/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const (
	sourceCLI    = "cli"
	maxInputSize = 10 << 20
)

const (
	fileFlagName    = "file"
	explainFlagName = "explain"
	memberFlagName  = "member"
	shockFlagName   = "shock"
)

func newHouseholdFileFlag() *urfave.StringFlag {
	return &urfave.StringFlag{
		Name:     fileFlagName,
		Aliases:  []string{"f"},
		Usage:    "Household JSON file, a single graph or {\"instances\": [...]}, - for stdin",
		Required: true,
	}
}

func newScoreCmd() *urfave.Command {
	return &urfave.Command{
		Name:   "score",
		Usage:  "Score households from a JSON file",
		Action: cmdScore,
		Flags: []urfave.Flag{
			newHouseholdFileFlag(),
			&urfave.BoolFlag{
				Name:  explainFlagName,
				Usage: "Include reasons and recommendations",
			},
		},
	}
}

func newSimulateCmd() *urfave.Command {
	return &urfave.Command{
		Name:   "simulate",
		Usage:  "Simulate the loss of a member's income",
		Action: cmdSimulate,
		Flags: []urfave.Flag{
			newHouseholdFileFlag(),
			&urfave.StringFlag{
				Name:     memberFlagName,
				Usage:    "Id of the shocked member",
				Required: true,
			},
			&urfave.StringFlag{
				Name:  shockFlagName,
				Usage: "Shock type [member_loss, job_loss, freelance_shock, rental_vacancy]",
				Value: household.ShockMemberLoss,
			},
		},
	}
}

func newLoanCmd() *urfave.Command {
	return &urfave.Command{
		Name:   "loan",
		Usage:  "Evaluate the loan risk of a household",
		Action: cmdLoan,
		Flags: []urfave.Flag{
			newHouseholdFileFlag(),
		},
	}
}

// ScoreOutput is a scored household, with its explanation when requested.
type ScoreOutput struct {
	FragilityScore  float64       `json:"fragility_score" yaml:"fragilityScore"`
	Features        score.Summary `json:"features" yaml:"features"`
	RiskBand        risk.Band     `json:"risk_band" yaml:"riskBand"`
	Reasons         []string      `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

func cmdScore(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	graphs, batch, err := readHouseholds(cmd, cmd.String(fileFlagName))
	if err != nil {
		return err
	}

	scorer, name, err := newScorer(ctx, cfg)
	if err != nil {
		return err
	}

	results, err := scorer.AnalyzeBatch(ctx, graphs)
	if err != nil {
		return err
	}

	if err := recordAnalyses(ctx, cfg, name, results); err != nil {
		return err
	}

	list := make([]*ScoreOutput, len(results))
	for i, r := range results {
		list[i] = &ScoreOutput{
			FragilityScore: r.FragilityScore,
			Features:       r.Features,
			RiskBand:       r.RiskBand,
		}
		if cmd.Bool(explainFlagName) {
			e := score.Explain(graphs[i], r.Vector())
			list[i].Reasons = e.Reasons
			list[i].Recommendations = e.Recommendations
		}
	}

	if batch {
		return cfg.output(cmd, map[string][]*ScoreOutput{"predictions": list})
	}
	return cfg.output(cmd, list[0])
}

func cmdSimulate(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	graphs, batch, err := readHouseholds(cmd, cmd.String(fileFlagName))
	if err != nil {
		return err
	}
	if batch {
		return errors.New("simulate takes a single household")
	}

	scorer, _, err := newScorer(ctx, cfg)
	if err != nil {
		return err
	}

	sim, err := scorer.Simulate(ctx, graphs[0], cmd.String(memberFlagName), cmd.String(shockFlagName))
	if err != nil {
		return err
	}
	return cfg.output(cmd, sim)
}

func cmdLoan(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	graphs, batch, err := readHouseholds(cmd, cmd.String(fileFlagName))
	if err != nil {
		return err
	}
	if batch {
		return errors.New("loan takes a single household")
	}

	scorer, name, err := newScorer(ctx, cfg)
	if err != nil {
		return err
	}

	res, e, err := scorer.EvaluateLoan(ctx, graphs[0])
	if err != nil {
		return err
	}
	if err := recordAnalyses(ctx, cfg, name, []*score.Result{res}); err != nil {
		return err
	}
	return cfg.output(cmd, e)
}

func newScorer(ctx context.Context, cfg *appConfig) (*score.Scorer, string, error) {
	p, err := cfg.openPredictor(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("loading model: %w", err)
	}
	s, err := score.New(p)
	if err != nil {
		return nil, "", err
	}
	return s, model.Name(p), nil
}

// readHouseholds reads a single graph or an instances batch. The bool reports
// a batch.
func readHouseholds(cmd *urfave.Command, path string) ([]*household.Graph, bool, error) {
	r, err := readInput(cmd, path)
	if err != nil {
		return nil, false, err
	}
	defer r.Close()

	b, err := io.ReadAll(io.LimitReader(r, maxInputSize))
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	var probe struct {
		Instances json.RawMessage `json:"instances"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, false, fmt.Errorf("decoding household: %w", err)
	}

	if len(probe.Instances) > 0 {
		batch, err := household.ParseBatch(bytes.NewReader(b))
		if err != nil {
			return nil, false, err
		}
		return batch.Instances, true, nil
	}

	g, err := household.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, false, err
	}
	return []*household.Graph{g}, false, nil
}

// recordAnalyses appends results to the store when one is configured.
func recordAnalyses(ctx context.Context, cfg *appConfig, modelName string, results []*score.Result) error {
	if cfg.Store.DSN == "" {
		return nil
	}
	store, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	list := make([]*data.Analysis, len(results))
	for i, r := range results {
		list[i] = &data.Analysis{
			Source:             sourceCLI,
			Model:              modelName,
			FragilityScore:     r.FragilityScore,
			RiskBand:           string(r.RiskBand),
			DependencyRatio:    r.Features.DependencyRatio,
			SinglePointFailure: r.Features.SinglePointFailure,
			ShockAmplification: r.Features.ShockAmplification,
		}
	}
	return store.SaveAnalysis(ctx, list...)
}
