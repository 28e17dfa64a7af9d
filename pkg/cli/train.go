package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mchmarny/fragility/pkg/model"
	"github.com/mchmarny/fragility/pkg/synth"
	urfave "github.com/urfave/cli/v3"
)

const (
	modelFileDefault = "model.yaml"

	dataFlagName         = "data"
	datasetFlagName      = "dataset"
	lambdaFlagName       = "lambda"
	testFractionFlagName = "test-fraction"
)

func newTrainCmd() *urfave.Command {
	return &urfave.Command{
		Name:   "train",
		Usage:  "Train a model on a generated dataset",
		Action: cmdTrain,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  dataFlagName,
				Usage: "Training CSV file produced by generate, - for stdin",
			},
			&urfave.StringFlag{
				Name:  datasetFlagName,
				Usage: "Id of a dataset stored with generate --save",
			},
			&urfave.StringFlag{
				Name:  outFlagName,
				Usage: "Output model file",
				Value: modelFileDefault,
			},
			&urfave.FloatFlag{
				Name:  lambdaFlagName,
				Usage: "Ridge penalty, must be positive",
				Value: model.DefaultLambda,
			},
			&urfave.FloatFlag{
				Name:  testFractionFlagName,
				Usage: "Share of rows held out for evaluation",
				Value: model.DefaultTestFraction,
			},
			&urfave.Uint64Flag{
				Name:  seedFlagName,
				Usage: "Seed of the train/test shuffle",
				Value: model.DefaultSplitSeed,
			},
		},
	}
}

// TrainResult reports where the model was written and how it evaluated.
type TrainResult struct {
	Model      string            `json:"model" yaml:"model"`
	Evaluation *model.Evaluation `json:"evaluation" yaml:"evaluation"`
}

func cmdTrain(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	rows, err := loadTrainingRows(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	m, eval, err := model.Train(rows, model.TrainOptions{
		Lambda:       cmd.Float(lambdaFlagName),
		TestFraction: cmd.Float(testFractionFlagName),
		Seed:         cmd.Uint64(seedFlagName),
	})
	if err != nil {
		return fmt.Errorf("training model: %w", err)
	}

	out := cmd.String(outFlagName)
	if err := m.Save(out); err != nil {
		return err
	}
	slog.Info("model saved", "path", out)

	return cfg.output(cmd, &TrainResult{Model: out, Evaluation: eval})
}

func loadTrainingRows(ctx context.Context, cmd *urfave.Command, cfg *appConfig) ([]synth.Row, error) {
	path := cmd.String(dataFlagName)
	id := cmd.String(datasetFlagName)

	switch {
	case path != "" && id != "":
		return nil, errors.New("use either --data or --dataset, not both")
	case path != "":
		r, err := readInput(cmd, path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readDataset(r)
	case id != "":
		store, err := cfg.openStore(ctx)
		if err != nil {
			return nil, err
		}
		return store.GetDatasetRows(ctx, id)
	default:
		return nil, errors.New("training data required, set --data or --dataset")
	}
}
