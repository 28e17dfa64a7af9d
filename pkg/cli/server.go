package cli

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/mchmarny/fragility/pkg/server"
	urfave "github.com/urfave/cli/v3"
)

const (
	portFlagName    = "port"
	addressFlagName = "address"
	noStoreFlagName = "no-store"
)

func newServerCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start the scoring HTTP server",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  portFlagName,
				Usage: "Port on which the server will listen (optional, default: config or 8080)",
			},
			&urfave.StringFlag{
				Name:  addressFlagName,
				Usage: "Address on which the server will listen (optional, default: config or 127.0.0.1)",
			},
			&urfave.BoolFlag{
				Name:  noStoreFlagName,
				Usage: "Do not record analyses in the database",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if cmd.IsSet(portFlagName) {
		port = cmd.Int(portFlagName)
	}
	if port <= 0 {
		port = server.PortDefault
	}
	address := cfg.Server.Address
	if cmd.IsSet(addressFlagName) {
		address = cmd.String(addressFlagName)
	}
	if address == "" {
		address = server.AddressDefault
	}

	scorer, name, err := newScorer(ctx, cfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		Scorer:    scorer,
		ModelName: name,
	}
	if !cmd.Bool(noStoreFlagName) && cfg.Store.DSN != "" {
		store, err := cfg.openStore(ctx)
		if err != nil {
			return err
		}
		opts.Recorder = store
	} else {
		slog.Debug("analysis recording disabled")
	}

	s, err := server.New(opts)
	if err != nil {
		return err
	}

	return s.ListenAndServe(ctx, net.JoinHostPort(address, strconv.Itoa(port)))
}
