package config

import (
	"time"

	"crossdeploy/internal/domain"
)

// Config is the root configuration structure: the static target registry
// definition plus tool and transfer settings.
type Config struct {
	Version    int                          `yaml:"version"`
	HistoryDB  string                       `yaml:"history_db,omitempty"`
	SourceRoot string                       `yaml:"source_root,omitempty"`
	Toolchain  ToolchainConfig              `yaml:"toolchain"`
	Build      BuildConfig                  `yaml:"build"`
	Deploy     DeployConfig                 `yaml:"deploy"`
	Targets    []domain.TargetSpec          `yaml:"targets"`
	Secrets    map[string]domain.Credential `yaml:"secrets"`
}

// ToolchainConfig configures the toolchain provisioner.
type ToolchainConfig struct {
	// Root is the directory holding per-triple install receipts and any
	// staged toolchain payloads.
	Root string `yaml:"root,omitempty"`

	// Probe is an optional argv whose stdout lists installed triples.
	// When empty the provisioner probes its own receipt directory instead.
	Probe []string `yaml:"probe,omitempty"`

	// Install is the argv run to install a target toolchain. "{triple}",
	// "{package}", and "{staging}" placeholders are expanded.
	Install []string `yaml:"install"`
}

// BuildConfig configures the external build tool invocation.
type BuildConfig struct {
	// Command is the argv run to build; "{triple}" is expanded.
	Command []string `yaml:"command"`

	// ReleaseFlag is appended to Command when release mode is requested.
	ReleaseFlag string `yaml:"release_flag,omitempty"`

	// Artifact is the path of the produced binary relative to the source
	// root; "{triple}" and "{profile}" are expanded.
	Artifact string `yaml:"artifact"`
}

// DeployConfig configures the remote transfer.
type DeployConfig struct {
	// Timeout applies per network operation, not per pipeline run.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Retries bounds the exponential backoff for transient connection and
	// transfer errors.
	Retries int `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
