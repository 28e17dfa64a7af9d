package cli

import (
	"context"

	"github.com/mchmarny/fragility/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const limitFlagName = "limit"

func newDataCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "data",
		Usage:           "List stored datasets and analyses",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:   "datasets",
				Usage:  "List datasets stored with generate --save",
				Action: cmdListDatasets,
			},
			{
				Name:   "analyses",
				Usage:  "List recorded analyses, newest first",
				Action: cmdListAnalyses,
				Flags: []urfave.Flag{
					&urfave.IntFlag{
						Name:  limitFlagName,
						Usage: "Maximum number of entries",
						Value: data.AnalysisListLimitDefault,
					},
				},
			},
		},
	}
}

func cmdListDatasets(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	store, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}
	list, err := store.ListDatasets(ctx)
	if err != nil {
		return err
	}
	return cfg.output(cmd, list)
}

func cmdListAnalyses(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	store, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}
	list, err := store.ListAnalyses(ctx, cmd.Int(limitFlagName))
	if err != nil {
		return err
	}
	return cfg.output(cmd, list)
}
