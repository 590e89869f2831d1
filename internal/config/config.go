// Package config loads the crossdeploy configuration: the target registry
// definition, toolchain and build tool invocations, transfer settings, and
// named credentials.
//
// Config file locations (priority order):
//  1. $CROSSDEPLOY_CONFIG
//  2. ./crossdeploy.yaml
//  3. XDG config dir (e.g. ~/.config/crossdeploy/config.yaml)
//  4. /etc/crossdeploy/config.yaml
//
// The configuration is consumed read-only at startup. Invalid registry data
// (duplicate target names, dangling credential references, malformed
// triples) is a fatal load error, never deferred to resolve or deploy time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// Load finds and loads the config file. A missing config file is an error:
// without a target registry there is nothing to deploy.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return nil, "", errdefs.New(errdefs.CodeInvalidConfig, "no config file found (set %s or create %s)", EnvConfigPath, ConfigFileName)
	}
	cfg, err := LoadFromPath(path)
	return cfg, path, err
}

// LoadFromPath loads and validates config from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "parse config %s", path)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.HistoryDB == "" {
		c.HistoryDB = DefaultHistoryPath()
	}
	if c.SourceRoot == "" {
		c.SourceRoot = "."
	}
	if c.Toolchain.Root == "" {
		c.Toolchain.Root = DefaultToolchainRoot()
	}
	if c.Build.ReleaseFlag == "" {
		c.Build.ReleaseFlag = "--release"
	}
	if c.Deploy.Timeout == 0 {
		c.Deploy.Timeout = Duration(30 * time.Second)
	}
	if c.Deploy.Retries == 0 {
		c.Deploy.Retries = 3
	}
}

// Validate checks the whole configuration. All registry problems are
// reported here, at load time.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errdefs.New(errdefs.CodeInvalidConfig, "no targets defined")
	}
	if len(c.Build.Command) == 0 {
		return errdefs.New(errdefs.CodeInvalidConfig, "build.command is required")
	}
	if c.Build.Artifact == "" {
		return errdefs.New(errdefs.CodeInvalidConfig, "build.artifact is required")
	}
	if len(c.Toolchain.Install) == 0 {
		return errdefs.New(errdefs.CodeInvalidConfig, "toolchain.install is required")
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, spec := range c.Targets {
		if err := spec.Validate(); err != nil {
			return errdefs.Wrap(err, errdefs.CodeInvalidConfig, "invalid target")
		}
		if seen[spec.Name] {
			return errdefs.New(errdefs.CodeInvalidConfig, "duplicate target name %q", spec.Name)
		}
		seen[spec.Name] = true

		// Credential references resolve at load time, never at deploy time.
		cred, ok := c.Secrets[spec.Host.Auth]
		if !ok {
			return errdefs.New(errdefs.CodeInvalidConfig, "target %s references unknown credential %q", spec.Name, spec.Host.Auth)
		}
		if err := cred.Validate(); err != nil {
			return errdefs.Wrap(err, errdefs.CodeInvalidConfig, "credential %q", spec.Host.Auth)
		}
	}
	return nil
}

// Credential returns the resolved credential for a host profile. Validate
// has already guaranteed the reference exists.
func (c *Config) Credential(host domain.HostProfile) (domain.Credential, error) {
	cred, ok := c.Secrets[host.Auth]
	if !ok {
		return domain.Credential{}, errdefs.New(errdefs.CodeInvalidConfig, "unknown credential %q", host.Auth)
	}
	return cred, nil
}

// DefaultConfig returns a starter configuration with one example target,
// written by --init as a skeleton for the operator to edit.
func DefaultConfig() *Config {
	cfg := &Config{
		Version: 1,
		Toolchain: ToolchainConfig{
			Probe:   []string{"rustup", "target", "list", "--installed"},
			Install: []string{"rustup", "target", "add", "{triple}"},
		},
		Build: BuildConfig{
			Command:  []string{"cargo", "build", "--target", "{triple}"},
			Artifact: "target/{triple}/{profile}/app",
		},
		Targets: []domain.TargetSpec{
			{
				Name:             "pi4",
				Triple:           "armv7-unknown-linux-gnueabihf",
				ToolchainPackage: "armv7-unknown-linux-gnueabihf",
				Host: domain.HostProfile{
					Address:    "pi.local:22",
					RemotePath: "/opt/app/app",
					Auth:       "pi",
				},
			},
		},
		Secrets: map[string]domain.Credential{
			"pi": {Username: "pi", PrivateKeyPath: "/home/pi/.ssh/id_ed25519"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
