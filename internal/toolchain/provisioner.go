// Package toolchain ensures the cross toolchain for a target triple is
// installed locally.
//
// The provisioner is idempotent: a cheap probe runs on every call, the
// installation runs at most once per triple. Installation work lands in a
// temporary staging directory under the toolchain root and is swapped into
// place with a single rename, so a cancelled or failed install leaves the
// system in its pre-call state.
//
// Concurrent Ensure calls for the same triple coordinate through a
// singleflight group: one installation runs, the other callers wait for it.
package toolchain

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
	"crossdeploy/internal/executor"
)

// receiptFile marks a fully-installed triple inside its receipt directory.
const receiptFile = "installed"

// InstallRecorder logs completed installations. One entry is written per
// actual installation side effect, never per probe.
type InstallRecorder interface {
	RecordInstall(ctx context.Context, triple, pkg string) error
}

// Provisioner installs target toolchains via a configured external tool.
type Provisioner struct {
	root     string   // receipt root; <root>/<triple> exists once installed
	probe    []string // optional argv listing installed triples on stdout
	install  []string // argv template with {triple}, {package}, {staging}
	runner   executor.Runner
	recorder InstallRecorder
	group    singleflight.Group
}

// New creates a provisioner. recorder may be nil.
func New(root string, probe, install []string, runner executor.Runner, recorder InstallRecorder) *Provisioner {
	return &Provisioner{
		root:     root,
		probe:    probe,
		install:  install,
		runner:   runner,
		recorder: recorder,
	}
}

// Installed reports whether the toolchain for the spec's triple is present.
// The probe is cheap and has no side effects: either a configured list
// command or a receipt-directory check.
func (p *Provisioner) Installed(ctx context.Context, spec domain.TargetSpec) (bool, error) {
	if len(p.probe) > 0 {
		result, err := p.runner.Run(ctx, p.probe)
		if err != nil {
			return false, errdefs.Wrap(err, errdefs.CodeInstallNetwork, "toolchain probe failed")
		}
		return strings.Contains(result.Stdout, spec.Triple.String()), nil
	}

	_, err := os.Stat(filepath.Join(p.root, spec.Triple.String(), receiptFile))
	return err == nil, nil
}

// Ensure makes sure the toolchain for the spec's triple is installed.
// Calling it twice with no environment change probes twice but installs at
// most once. Concurrent calls for the same triple share one installation.
func (p *Provisioner) Ensure(ctx context.Context, spec domain.TargetSpec) error {
	installed, err := p.Installed(ctx, spec)
	if err != nil {
		return err
	}
	if installed {
		log.Printf("Toolchain for %s already installed", spec.Triple)
		return nil
	}

	_, err, _ = p.group.Do(spec.Triple.String(), func() (interface{}, error) {
		// Re-check under the flight: a concurrent caller may have finished
		// the install while this one was waiting to start.
		installed, err := p.Installed(ctx, spec)
		if err != nil {
			return nil, err
		}
		if installed {
			return nil, nil
		}
		return nil, p.installToolchain(ctx, spec)
	})
	return err
}

// installToolchain performs the actual installation through a staging
// directory swapped into place only on full success.
func (p *Provisioner) installToolchain(ctx context.Context, spec domain.TargetSpec) error {
	triple := spec.Triple.String()
	log.Printf("Installing toolchain for %s (package %s)", triple, spec.ToolchainPackage)

	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return errdefs.Wrap(err, errdefs.CodeInstallPermission, "create toolchain root %s", p.root)
	}

	staging, err := os.MkdirTemp(p.root, ".staging-"+triple+"-")
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeInstallPermission, "create staging dir")
	}
	// Removing the staging dir restores the pre-call state on any failure.
	// After a successful rename the path no longer exists and this is a no-op.
	defer os.RemoveAll(staging)

	argv := expandArgv(p.install, map[string]string{
		"{triple}":  triple,
		"{package}": spec.ToolchainPackage,
		"{staging}": staging,
	})

	result, err := p.runner.Run(ctx, argv)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("toolchain install for %s cancelled: %w", triple, ctx.Err())
		}
		return classifyInstallError(spec, result, err)
	}

	receipt := fmt.Sprintf("triple: %s\npackage: %s\ninstalled_at: %s\n",
		triple, spec.ToolchainPackage, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(staging, receiptFile), []byte(receipt), 0o644); err != nil {
		return errdefs.Wrap(err, errdefs.CodeInstallPermission, "write install receipt")
	}

	final := filepath.Join(p.root, triple)
	if err := os.Rename(staging, final); err != nil {
		// A concurrent process may have won the swap; its install is as
		// good as ours.
		if _, statErr := os.Stat(filepath.Join(final, receiptFile)); statErr == nil {
			return nil
		}
		return errdefs.Wrap(err, errdefs.CodeInstallPermission, "activate toolchain %s", triple)
	}

	if p.recorder != nil {
		if err := p.recorder.RecordInstall(ctx, triple, spec.ToolchainPackage); err != nil {
			log.Printf("Failed to record install for %s: %v", triple, err)
		}
	}

	log.Printf("Toolchain for %s installed", triple)
	return nil
}

// classifyInstallError maps installer output to the error taxonomy so
// callers can decide between retry (network) and abort (package not found).
// Unrecognized failures classify as network so a bounded retry is permitted.
func classifyInstallError(spec domain.TargetSpec, result *executor.Result, err error) error {
	stderr, output := "", ""
	if result != nil {
		stderr = strings.TrimSpace(result.Stderr)
		output = strings.ToLower(result.Stdout + "\n" + result.Stderr)
	}

	switch {
	case containsAny(output, "not found", "no such package", "does not exist", "unknown target", "unable to locate"):
		return errdefs.Wrap(err, errdefs.CodeInstallNotFound,
			"toolchain package %s for %s not found: %s", spec.ToolchainPackage, spec.Triple, stderr)
	case containsAny(output, "permission denied", "operation not permitted", "read-only file system"):
		return errdefs.Wrap(err, errdefs.CodeInstallPermission,
			"toolchain install for %s denied: %s", spec.Triple, stderr)
	default:
		return errdefs.Wrap(err, errdefs.CodeInstallNetwork,
			"toolchain install for %s failed: %s", spec.Triple, stderr)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// expandArgv substitutes placeholders in a command template.
func expandArgv(template []string, vars map[string]string) []string {
	argv := make([]string, len(template))
	for i, arg := range template {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, k, v)
		}
		argv[i] = arg
	}
	return argv
}
