package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "CROSSDEPLOY_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "crossdeploy.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "crossdeploy"
)

// FindConfigPath searches for the config file in priority order:
// 1. $CROSSDEPLOY_CONFIG (explicit path)
// 2. ./crossdeploy.yaml (working directory)
// 3. XDG config dirs (crossdeploy/config.yaml)
// 4. /etc/crossdeploy/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	// 1. Explicit environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	// 2. Working directory
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	// 3. XDG config dirs (covers ~/.config and system XDG paths)
	if path, err := xdg.SearchConfigFile(filepath.Join(ConfigDirName, "config.yaml")); err == nil {
		return path
	}

	// 4. System-wide
	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	// No config found
	return ""
}

// DefaultHistoryPath returns the preferred location for the history database
func DefaultHistoryPath() string {
	return filepath.Join(xdg.StateHome, ConfigDirName, "history.db")
}

// DefaultToolchainRoot returns the preferred location for toolchain receipts
func DefaultToolchainRoot() string {
	return filepath.Join(xdg.CacheHome, ConfigDirName, "toolchains")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
