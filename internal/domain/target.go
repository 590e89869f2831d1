package domain

import (
	"fmt"
	"strings"
)

// Triple identifies the CPU architecture, vendor, and OS/ABI of a build
// target, e.g. "armv7-unknown-linux-gnueabihf".
type Triple string

// Arch returns the architecture component of the triple (the first
// dash-separated field), or an empty string for a malformed triple.
func (t Triple) Arch() string {
	s := string(t)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return ""
}

// Validate checks that the triple has at least arch-vendor-os components.
func (t Triple) Validate() error {
	parts := strings.Split(string(t), "-")
	if len(parts) < 3 {
		return fmt.Errorf("triple %q must have at least arch-vendor-os components", t)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("triple %q has an empty component", t)
		}
	}
	return nil
}

func (t Triple) String() string {
	return string(t)
}

// HostProfile describes the remote destination for a deployed artifact.
// Auth names a credential entry in the secrets configuration; it is
// resolved at config load time, never at deploy time.
type HostProfile struct {
	Address    string `yaml:"address"`     // host or host:port
	RemotePath string `yaml:"remote_path"` // final path of the deployed binary
	Auth       string `yaml:"auth"`        // credential reference
}

// Validate checks that all required host fields are present.
func (h HostProfile) Validate() error {
	if h.Address == "" {
		return fmt.Errorf("host address is required")
	}
	if h.RemotePath == "" {
		return fmt.Errorf("host remote_path is required")
	}
	if !strings.HasPrefix(h.RemotePath, "/") {
		return fmt.Errorf("host remote_path %q must be absolute", h.RemotePath)
	}
	if h.Auth == "" {
		return fmt.Errorf("host auth reference is required")
	}
	return nil
}

// TargetSpec maps a logical target name to its build triple, toolchain
// package, and destination host. Loaded once at startup and never mutated.
type TargetSpec struct {
	Name             string      `yaml:"name"`
	Triple           Triple      `yaml:"triple"`
	ToolchainPackage string      `yaml:"toolchain_package"`
	Host             HostProfile `yaml:"host"`
}

// Validate checks the spec and its host profile.
func (s TargetSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("target name is required")
	}
	if err := s.Triple.Validate(); err != nil {
		return fmt.Errorf("target %s: %w", s.Name, err)
	}
	if s.ToolchainPackage == "" {
		return fmt.Errorf("target %s: toolchain_package is required", s.Name)
	}
	if err := s.Host.Validate(); err != nil {
		return fmt.Errorf("target %s: %w", s.Name, err)
	}
	return nil
}

// Credential is a resolved secret used to authenticate the remote transfer.
// Either PrivateKeyPath or Password must be set.
type Credential struct {
	Username       string `yaml:"username"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty"`
	Passphrase     string `yaml:"passphrase,omitempty"`
	Password       string `yaml:"password,omitempty"`
}

// Validate checks that the credential is usable for authentication.
func (c Credential) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("credential username is required")
	}
	if c.PrivateKeyPath == "" && c.Password == "" {
		return fmt.Errorf("credential needs a private_key_path or a password")
	}
	return nil
}
