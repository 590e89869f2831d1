// Package pipeline sequences the deploy stages for a target: resolve the
// target, ensure its toolchain, build, verify, deploy. Each stage's output
// is the next stage's sole input; a failure halts the run and is reported
// with the failing stage attached. No stage is re-entered after failure —
// re-invoking the whole pipeline is safe because every stage is idempotent
// or side-effect-isolated.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/registry"
	"crossdeploy/internal/repository/sqlite"
)

// Stage identifies a pipeline state.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageProvision Stage = "provision"
	StageBuild     Stage = "build"
	StageVerify    Stage = "verify"
	StageDeploy    Stage = "deploy"
	StageDone      Stage = "done"
)

// ExitCode returns the process exit code for a failure in this stage, so
// calling scripts can branch on the failure class.
func (s Stage) ExitCode() int {
	switch s {
	case StageResolve:
		return 2
	case StageProvision:
		return 3
	case StageBuild:
		return 4
	case StageVerify:
		return 5
	case StageDeploy:
		return 6
	case StageDone:
		return 0
	}
	return 1
}

// StageError attaches the failing stage to the original error, preserving
// causality for diagnosis.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the stage from a pipeline error, or StageDone for
// nil and unclassified errors.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageDone
}

// Provisioner ensures a target's toolchain is installed.
type Provisioner interface {
	Ensure(ctx context.Context, spec domain.TargetSpec) error
}

// ArtifactBuilder produces one artifact per build request.
type ArtifactBuilder interface {
	Build(ctx context.Context, req domain.BuildRequest) (*domain.Artifact, error)
}

// ArtifactDeployer transfers a verified artifact to its target host.
type ArtifactDeployer interface {
	Deploy(ctx context.Context, artifact domain.Artifact, spec domain.TargetSpec) (*domain.DeployResult, error)
}

// RunRecorder persists run outcomes for later inspection.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec sqlite.RunRecord) error
}

// Pipeline wires the stages together.
type Pipeline struct {
	Registry    *registry.Registry
	Provisioner Provisioner
	Builder     ArtifactBuilder
	Verify      func(artifact domain.Artifact, expected domain.Triple) error
	DeployerFor func(spec domain.TargetSpec) (ArtifactDeployer, error)

	// Preflight optionally checks host reachability before any work. Nil
	// disables it.
	Preflight func(ctx context.Context, address string) error

	// History optionally records run outcomes. Nil disables it.
	History RunRecorder

	SourceRoot string
}

// Options are per-run knobs.
type Options struct {
	ReleaseMode bool
	UniquePath  bool
}

// Outcome is the result of one target's pipeline run.
type Outcome struct {
	Target string
	Result *domain.DeployResult
	Err    error
}

// Run executes the pipeline for one target. On failure the returned error
// is a *StageError naming the failing stage.
func (p *Pipeline) Run(ctx context.Context, targetName string, opts Options) (*domain.DeployResult, error) {
	log.Printf("Pipeline for %s: resolving", targetName)
	spec, err := p.Registry.Resolve(targetName)
	if err != nil {
		return nil, p.fail(ctx, domain.TargetSpec{Name: targetName}, StageResolve, err)
	}

	if p.Preflight != nil {
		if err := p.Preflight(ctx, spec.Host.Address); err != nil {
			return nil, p.fail(ctx, spec, StageDeploy, err)
		}
	}

	// Cancellation is observed at every stage boundary.
	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, spec, StageProvision, err)
	}
	log.Printf("Pipeline for %s: provisioning toolchain %s", targetName, spec.Triple)
	if err := p.Provisioner.Ensure(ctx, spec); err != nil {
		return nil, p.fail(ctx, spec, StageProvision, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, spec, StageBuild, err)
	}
	log.Printf("Pipeline for %s: building", targetName)
	artifact, err := p.Builder.Build(ctx, domain.BuildRequest{
		Target:      spec,
		ReleaseMode: opts.ReleaseMode,
		SourceRoot:  p.SourceRoot,
		UniquePath:  opts.UniquePath,
	})
	if err != nil {
		return nil, p.fail(ctx, spec, StageBuild, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, spec, StageVerify, err)
	}
	log.Printf("Pipeline for %s: verifying %s", targetName, artifact.LocalPath)
	if err := p.Verify(*artifact, spec.Triple); err != nil {
		return nil, p.fail(ctx, spec, StageVerify, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, spec, StageDeploy, err)
	}
	log.Printf("Pipeline for %s: deploying to %s", targetName, spec.Host.Address)
	deployer, err := p.DeployerFor(spec)
	if err != nil {
		return nil, p.fail(ctx, spec, StageDeploy, err)
	}
	result, err := deployer.Deploy(ctx, *artifact, spec)
	if err != nil {
		return nil, p.fail(ctx, spec, StageDeploy, err)
	}

	p.record(ctx, spec, sqlite.RunRecord{
		Target:           spec.Name,
		Triple:           spec.Triple.String(),
		Stage:            string(StageDone),
		Success:          true,
		RemotePath:       result.RemotePath,
		BytesTransferred: result.BytesTransferred,
	})
	log.Printf("Pipeline for %s: done (%d bytes to %s)", targetName, result.BytesTransferred, result.RemotePath)
	return result, nil
}

// RunAll executes independent pipelines for several targets concurrently,
// capped at jobs in flight. Per-triple toolchain installs still coordinate
// through the provisioner.
func (p *Pipeline) RunAll(ctx context.Context, targets []string, jobs int, opts Options) []Outcome {
	if jobs < 1 {
		jobs = 1
	}

	outcomes := make([]Outcome, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			result, err := p.Run(ctx, target, opts)
			outcomes[i] = Outcome{Target: target, Result: result, Err: err}
			// Other targets keep running; errors are reported per outcome.
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (p *Pipeline) fail(ctx context.Context, spec domain.TargetSpec, stage Stage, err error) error {
	p.record(ctx, spec, sqlite.RunRecord{
		Target:  spec.Name,
		Triple:  spec.Triple.String(),
		Stage:   string(stage),
		Success: false,
		Error:   err.Error(),
	})
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) record(ctx context.Context, spec domain.TargetSpec, rec sqlite.RunRecord) {
	if p.History == nil {
		return
	}
	// History writes must not mask the run outcome.
	if err := p.History.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		log.Printf("Failed to record run for %s: %v", spec.Name, err)
	}
}
