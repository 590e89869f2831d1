// Package builder invokes the external build tool for a target triple and
// locates the produced artifact.
//
// Precondition: the toolchain for the request's triple has already been
// installed (toolchain.Provisioner.Ensure succeeded). The builder does not
// re-check this; running without it surfaces as a toolchain-missing error
// from the underlying build invocation.
package builder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
	"crossdeploy/internal/executor"
)

// Builder runs the configured build command and resolves the artifact path.
type Builder struct {
	command          []string // argv template with {triple}
	releaseFlag      string   // appended in release mode
	artifactTemplate string   // relative path with {triple}, {profile}
	runner           executor.Runner
}

// New creates a builder around the configured build tool invocation.
func New(command []string, releaseFlag, artifactTemplate string, runner executor.Runner) *Builder {
	return &Builder{
		command:          command,
		releaseFlag:      releaseFlag,
		artifactTemplate: artifactTemplate,
		runner:           runner,
	}
}

// ArtifactPath returns the deterministic output path for a request, derived
// from (triple, profile) so repeated runs overwrite rather than accumulate.
func (b *Builder) ArtifactPath(req domain.BuildRequest) string {
	rel := strings.ReplaceAll(b.artifactTemplate, "{triple}", req.Target.Triple.String())
	rel = strings.ReplaceAll(rel, "{profile}", req.Profile())
	return filepath.Join(req.SourceRoot, rel)
}

// Build invokes the build tool and returns the produced artifact. Compile
// diagnostics are preserved verbatim in the error, never summarized.
func (b *Builder) Build(ctx context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "invalid build request")
	}

	argv := make([]string, 0, len(b.command)+1)
	for _, arg := range b.command {
		argv = append(argv, strings.ReplaceAll(arg, "{triple}", req.Target.Triple.String()))
	}
	if req.ReleaseMode && b.releaseFlag != "" {
		argv = append(argv, b.releaseFlag)
	}

	log.Printf("Building %s (%s profile) in %s", req.Target.Triple, req.Profile(), req.SourceRoot)

	// Compiler output streams live to the operator and is still captured
	// for error classification.
	result, err := b.runner.Run(ctx, argv,
		executor.WithDir(req.SourceRoot),
		executor.WithStdout(os.Stderr),
		executor.WithStderr(os.Stderr))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("build for %s cancelled: %w", req.Target.Triple, ctx.Err())
		}
		return nil, classifyBuildError(req.Target.Triple, result, err)
	}

	path := b.ArtifactPath(req)
	info, err := os.Stat(path)
	if err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeIO, "build succeeded but artifact missing at %s", path)
	}

	if req.UniquePath {
		unique := fmt.Sprintf("%s-%d", path, time.Now().UnixNano())
		if err := os.Rename(path, unique); err != nil {
			return nil, errdefs.Wrap(err, errdefs.CodeIO, "move artifact to unique path")
		}
		path = unique
	}

	artifact := &domain.Artifact{
		LocalPath: path,
		SizeBytes: uint64(info.Size()),
		Triple:    req.Target.Triple,
	}
	log.Printf("Built %s (%d bytes)", path, artifact.SizeBytes)
	return artifact, nil
}

// classifyBuildError separates a violated toolchain precondition from an
// ordinary compile failure. Diagnostics ride along verbatim either way.
func classifyBuildError(triple domain.Triple, result *executor.Result, err error) error {
	diagnostics := ""
	if result != nil {
		diagnostics = strings.TrimSpace(result.Stderr)
		if diagnostics == "" {
			diagnostics = strings.TrimSpace(result.Stdout)
		}
	}

	lower := strings.ToLower(diagnostics)
	if strings.Contains(lower, "toolchain") &&
		(strings.Contains(lower, "not installed") || strings.Contains(lower, "not found")) {
		return errdefs.Wrap(err, errdefs.CodeToolchainMissing,
			"toolchain for %s missing: %s", triple, diagnostics)
	}
	if strings.Contains(lower, "may not be installed") {
		return errdefs.Wrap(err, errdefs.CodeToolchainMissing,
			"target %s missing: %s", triple, diagnostics)
	}

	return errdefs.Wrap(err, errdefs.CodeCompileFailed, "%s", diagnostics)
}
