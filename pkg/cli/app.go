// Package cli implements the fragility command line application.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mchmarny/fragility/pkg/auth"
	"github.com/mchmarny/fragility/pkg/config"
	"github.com/mchmarny/fragility/pkg/data"
	"github.com/mchmarny/fragility/pkg/logging"
	"github.com/mchmarny/fragility/pkg/model"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName = "fragility"

	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName     = "debug"
	configDirFlagName = "config"
	formatFlagName    = "format"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

type appConfigKey struct{}

// appConfig is the per-invocation state shared by all commands.
type appConfig struct {
	*config.Config

	Dir    string
	Debug  bool
	Format string

	store    *data.Store
	closeLog func() error
}

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Household financial fragility scoring",
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&urfave.StringFlag{
				Name:  configDirFlagName,
				Usage: "Directory holding config.yaml and the local database (optional, default: $HOME/.fragility)",
			},
			&urfave.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*urfave.Command{
			newGenerateCmd(),
			newTrainCmd(),
			newScoreCmd(),
			newSimulateCmd(),
			newLoanCmd(),
			newServerCmd(),
			newAuthCmd(),
			newDataCmd(),
			newResetCmd(),
		},
		Before: before,
		After:  after,
	}
}

func before(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
	dir := cmd.String(configDirFlagName)
	if dir == "" {
		dir = getHomeDir()
	}

	c, err := config.Load(dir)
	if err != nil {
		return ctx, fmt.Errorf("loading config: %w", err)
	}

	debug := cmd.Bool(debugFlagName)
	if debug {
		c.Log.Level = "debug"
	}

	closeLog, err := logging.Setup(c.Log.Level, c.Log.File)
	if err != nil {
		return ctx, fmt.Errorf("initializing logging: %w", err)
	}

	format := formatJSON
	if f := cmd.String(formatFlagName); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	slog.Debug("config loaded", "dir", dir, "store", c.Store.DSN, "model", c.Model.Path, "endpoint", c.Model.Endpoint)

	return context.WithValue(ctx, appConfigKey{}, &appConfig{
		Config:   c,
		Dir:      dir,
		Debug:    debug,
		Format:   format,
		closeLog: closeLog,
	}), nil
}

func after(ctx context.Context, _ *urfave.Command) error {
	cfg, ok := ctx.Value(appConfigKey{}).(*appConfig)
	if !ok {
		return nil
	}
	var errs []error
	if cfg.store != nil {
		errs = append(errs, cfg.store.Close())
		cfg.store = nil
	}
	if cfg.closeLog != nil {
		errs = append(errs, cfg.closeLog())
		cfg.closeLog = nil
	}
	return errors.Join(errs...)
}

func getConfig(ctx context.Context) (*appConfig, error) {
	cfg, ok := ctx.Value(appConfigKey{}).(*appConfig)
	if !ok {
		return nil, errors.New("app config not initialized")
	}
	return cfg, nil
}

// openStore opens the configured store once per invocation.
func (c *appConfig) openStore(ctx context.Context) (*data.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	s, err := data.Open(ctx, c.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	c.store = s
	return s, nil
}

func (c *appConfig) tokenStore() *auth.TokenStore {
	return auth.NewTokenStore(c.Dir)
}

// openPredictor loads the configured predictor once for the invocation.
func (c *appConfig) openPredictor(ctx context.Context) (model.Predictor, error) {
	opts := model.Options{
		Endpoint: c.Model.Endpoint,
		Path:     c.Model.Path,
		CacheDir: c.Dir,
	}
	if opts.Endpoint != "" {
		token, err := c.tokenStore().Get()
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			return nil, fmt.Errorf("reading endpoint token: %w", err)
		}
		opts.Token = token
	}
	return model.Open(ctx, opts)
}

func getHomeDir() string {
	dir, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	return dir
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// output writes v to the root command writer in the selected format.
func (c *appConfig) output(cmd *urfave.Command, v any) error {
	return encode(cmd.Root().Writer, c.Format, v)
}

func readInput(cmd *urfave.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.Root().Reader), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
