package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "KAROL_CONFIG"

// Path returns $KAROL_CONFIG if set, else <UserConfigDir>/karol/config.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "karol", "config"), nil
}

// DataDir returns the directory karol keeps assignments and solutions under
// by default: <UserConfigDir>/karol.
func DataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "karol"), nil
}
