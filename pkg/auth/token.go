// Package auth stores the bearer token sent to a remote prediction endpoint.
// The OS keychain is preferred; a file in the app dir is the fallback.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "endpoint_token"
	keyringService = "fragility"
	keyringUser    = "endpoint_token"
	tokenFileMode  = 0600
)

// ErrNoToken means no token was saved.
var ErrNoToken = errors.New("no endpoint token saved")

// TokenStore reads and writes the endpoint token.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a store using dir for the file fallback.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) filePath() string {
	return filepath.Join(s.dir, tokenFileName)
}

// Save stores token in the keychain, or in a file when the keychain is not
// available.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token required")
	}

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(token)
	}

	// drop a stale fallback file
	_ = os.Remove(s.filePath())
	return nil
}

// Get returns the saved token. A token found only in the fallback file is
// moved into the keychain when it becomes available.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = s.readFile()
	if err != nil {
		return "", err
	}

	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		_ = os.Remove(s.filePath())
	}

	return token, nil
}

// Delete removes the token from the keychain and the fallback file.
func (s *TokenStore) Delete() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("failed to delete keychain token", "error", err)
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (s *TokenStore) saveFile(token string) error {
	if err := os.WriteFile(s.filePath(), []byte(token), tokenFileMode); err != nil {
		return fmt.Errorf("writing token file %s: %w", s.filePath(), err)
	}
	return nil
}

func (s *TokenStore) readFile() (string, error) {
	b, err := os.ReadFile(s.filePath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", s.filePath(), err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
