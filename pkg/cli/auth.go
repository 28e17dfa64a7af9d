package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	urfave "github.com/urfave/cli/v3"
)

const (
	tokenFlagName  = "token"
	deleteFlagName = "delete"
	tokenEnvVar    = "FRAGILITY_ENDPOINT_TOKEN"
)

func newAuthCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Save the token used to call the remote model endpoint",
		Action:          cmdAuth,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:    tokenFlagName,
				Usage:   "Bearer token sent to the remote model endpoint",
				Sources: urfave.EnvVars(tokenEnvVar),
			},
			&urfave.BoolFlag{
				Name:  deleteFlagName,
				Usage: "Remove the saved token",
			},
		},
	}
}

func cmdAuth(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	ts := cfg.tokenStore()

	if cmd.Bool(deleteFlagName) {
		if err := ts.Delete(); err != nil {
			return fmt.Errorf("deleting token: %w", err)
		}
		slog.Info("token deleted")
		return nil
	}

	token := cmd.String(tokenFlagName)
	if token == "" {
		return errors.New("token required, set --token")
	}
	if err := ts.Save(token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	if cfg.Model.Endpoint == "" {
		slog.Warn("token saved but no model endpoint is configured")
	}
	fmt.Fprintln(cmd.Root().Writer, "Token saved")
	return nil
}
