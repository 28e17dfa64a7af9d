package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/fragility/pkg/net"
)

const downloadedModelFile = "model-download.yaml"

// Options selects the predictor to load at startup.
type Options struct {
	// Endpoint of a remote prediction service, takes precedence over Path.
	Endpoint string
	// Token sent to Endpoint as a bearer token.
	Token string
	// Path of a model file saved with Linear.Save, or an http(s) URL to one.
	Path string
	// CacheDir receives a downloaded model file.
	CacheDir string
}

// Open loads the predictor described by opts once. Without an endpoint or a
// model path it falls back to the label formula.
func Open(ctx context.Context, opts Options) (Predictor, error) {
	switch {
	case opts.Endpoint != "":
		slog.Info("using remote model", "endpoint", opts.Endpoint)
		return NewRemote(ctx, opts.Endpoint, opts.Token)

	case opts.Path != "":
		path := opts.Path
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			dir := opts.CacheDir
			if dir == "" {
				dir = os.TempDir()
			}
			local := filepath.Join(dir, downloadedModelFile)
			if err := net.Download(ctx, path, local); err != nil {
				return nil, fmt.Errorf("downloading model %s: %w", path, err)
			}
			path = local
		}

		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded model", "path", opts.Path, "version", m.Version, "trained", m.TrainedAt)
		return m, nil

	default:
		slog.Warn("no model configured, scoring with the label formula")
		return Formula{}, nil
	}
}
