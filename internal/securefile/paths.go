package securefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvFolder maps SWAP_AGENT_ENV to a config subfolder. Production uses none.
func EnvFolder() (string, error) {
	raw := strings.TrimSpace(os.Getenv("SWAP_AGENT_ENV"))
	switch strings.ToLower(raw) {
	case "", "prod", "production":
		return "", nil
	case "local":
		return "local", nil
	case "dev", "develop", "development":
		return "develop", nil
	default:
		return "", fmt.Errorf("invalid SWAP_AGENT_ENV %q (allowed: local, develop, empty)", raw)
	}
}

// ConfigPathCandidates returns where app's filename may live, in priority order:
// $SNAP_REAL_HOME/.config/<app>, $HOME/.config/<app>, then os.UserConfigDir()/<app>.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	if app == "" {
		return nil, errors.New("app must not be empty")
	}
	if filename == "" {
		return nil, errors.New("filename must not be empty")
	}
	envFolder, err := EnvFolder()
	if err != nil {
		return nil, err
	}

	var paths []string
	seen := map[string]bool{}
	add := func(dir string) {
		if envFolder != "" {
			dir = filepath.Join(dir, envFolder)
		}
		p := filepath.Join(dir, filename)
		if seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(filepath.Join(realHome, ".config", app))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(filepath.Join(home, ".config", app))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, app))
	} else if len(paths) == 0 {
		return nil, fmt.Errorf("UserConfigDir: %w", err)
	}
	return paths, nil
}
