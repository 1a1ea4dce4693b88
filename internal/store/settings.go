package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Settings are the user-editable values kept across restarts.
type Settings struct {
	DraftFolder string `json:"draft_folder"`
	BackendURL  string `json:"backend_url"`
}

// LoadSettings reads stored settings. Values never stored fall back to
// defaults.
func LoadSettings(ctx context.Context, repo Repository, defaults Settings) (Settings, error) {
	s := defaults

	folder, err := repo.GetConfig(ctx, KeyDraftFolder)
	if err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", KeyDraftFolder, err)
	}
	if folder != "" {
		s.DraftFolder = folder
	}

	backendURL, err := repo.GetConfig(ctx, KeyBackendURL)
	if err != nil {
		return Settings{}, fmt.Errorf("load %s: %w", KeyBackendURL, err)
	}
	if backendURL != "" {
		s.BackendURL = backendURL
	}
	return s, nil
}

// SaveSettings stores s. An empty draft folder clears the stored one.
func SaveSettings(ctx context.Context, repo Repository, s Settings) error {
	folder := strings.TrimSpace(s.DraftFolder)
	if folder != "" && !filepath.IsAbs(folder) {
		return fmt.Errorf("draft folder must be an absolute path: %q", folder)
	}
	if err := repo.SetConfig(ctx, KeyDraftFolder, folder); err != nil {
		return fmt.Errorf("save %s: %w", KeyDraftFolder, err)
	}
	if err := repo.SetConfig(ctx, KeyBackendURL, strings.TrimSpace(s.BackendURL)); err != nil {
		return fmt.Errorf("save %s: %w", KeyBackendURL, err)
	}
	return nil
}

// EnsureAuthToken returns the local API token, generating one on first run.
func EnsureAuthToken(ctx context.Context, repo Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, KeyAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, KeyAuthToken, token); err != nil {
		return "", err
	}
	return token, nil
}
