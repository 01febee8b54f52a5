package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
)

const (
	appDirName    = "tripwire"
	dataDirEnvVar = "TRIPWIRE_DATA_DIR"
)

// getDataDir returns the appropriate data directory for the current OS
// following XDG Base Directory specification on Linux/Unix
func getDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %LOCALAPPDATA%\tripwire
		baseDir = os.Getenv("LOCALAPPDATA")
		if baseDir == "" {
			baseDir = os.Getenv("APPDATA")
		}
		if baseDir == "" {
			return "", fmt.Errorf("could not determine Windows data directory")
		}
		baseDir = filepath.Join(baseDir, appDirName)

	case "darwin":
		// macOS: ~/Library/Application Support/tripwire
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support", appDirName)

	default:
		// Priority: $XDG_DATA_HOME/tripwire > ~/.local/share/tripwire
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			baseDir = filepath.Join(xdgDataHome, appDirName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("could not determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".local", "share", appDirName)
		}
	}

	return ensureDir(baseDir)
}

// resolveDataDir picks the data directory: the environment override, then
// the configured data_dir, then the per-OS default.
func resolveDataDir(configured string) (string, error) {
	if env := os.Getenv(dataDirEnvVar); env != "" {
		return ensureDir(env)
	}
	if configured != "" {
		return ensureDir(configured)
	}
	return getDataDir()
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(abs, constants.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return abs, nil
}
