// Package config reads the app config file and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dataFileName   = "data.db"
	dirMode        = 0700
	fileMode       = 0600

	portDefault     = 8080
	addressDefault  = "127.0.0.1"
	logLevelDefault = "info"

	EnvModelPath     = "FRAGILITY_MODEL_PATH"
	EnvModelEndpoint = "FRAGILITY_MODEL_ENDPOINT"
	EnvStoreDSN      = "FRAGILITY_STORE_DSN"
	EnvLogLevel      = "FRAGILITY_LOG_LEVEL"
	EnvLogFile       = "FRAGILITY_LOG_FILE"
	EnvPort          = "FRAGILITY_PORT"
)

// Config represents app config object.
type Config struct {
	Model  Model  `yaml:"model" json:"model"`
	Server Server `yaml:"server" json:"server"`
	Store  Store  `yaml:"store" json:"store"`
	Log    Log    `yaml:"log" json:"log"`
}

// Model selects the predictor loaded at startup.
type Model struct {
	// Path of a model file or an http(s) URL to one.
	Path string `yaml:"path" json:"path"`
	// Endpoint of a remote prediction service.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
}

// Store holds the database DSN: a SQLite file path or a postgres:// URL.
type Store struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// Log holds the log level and optional JSON log file.
type Log struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

func getDefaultConfig(dirPath string) *Config {
	return &Config{
		Server: Server{
			Address: addressDefault,
			Port:    portDefault,
		},
		Store: Store{
			DSN: filepath.Join(dirPath, dataFileName),
		},
		Log: Log{
			Level: logLevelDefault,
		},
	}
}

// Save writes c into the config file in dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, getDefaultConfig(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := getDefaultConfig(dirPath)
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	return c, nil
}

// Load reads the config from dirPath and applies environment overrides.
func Load(dirPath string) (*Config, error) {
	c, err := ReadOrCreate(dirPath)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides config values with the FRAGILITY_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Model.Path = getEnv(EnvModelPath, c.Model.Path)
	c.Model.Endpoint = getEnv(EnvModelEndpoint, c.Model.Endpoint)
	c.Store.DSN = getEnv(EnvStoreDSN, c.Store.DSN)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
	c.Log.File = getEnv(EnvLogFile, c.Log.File)

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s value: %q", EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetOrCreateHomeDir returns the app directory under the user home dir.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
