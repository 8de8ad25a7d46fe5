package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// StateBaseDir resolves the default base directory for studio state.
// Preference order:
// 1. $XDG_STATE_HOME/studio
// 2. ~/.local/state/studio
// 3. $XDG_RUNTIME_DIR/studio
func StateBaseDir() (string, error) {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "studio"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		if runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); runtimeDir != "" {
			return filepath.Join(runtimeDir, "studio"), nil
		}
		return "", err
	}
	if home != "" {
		return filepath.Join(home, ".local", "state", "studio"), nil
	}
	if runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); runtimeDir != "" {
		return filepath.Join(runtimeDir, "studio"), nil
	}
	return "", errors.New("unable to resolve state directory from XDG state/runtime or home")
}

// RegistryDBPath returns the default location of the sandbox registry
// database.
func RegistryDBPath() (string, error) {
	base, err := StateBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "registry.db"), nil
}

// TLSDir returns the default directory for studio TLS material.
// Uses $XDG_CONFIG_HOME/studio/tls or ~/.config/studio/tls.
func TLSDir() (string, error) {
	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome != "" {
		return filepath.Join(configHome, "studio", "tls"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studio", "tls"), nil
}
