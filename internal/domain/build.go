package domain

import "fmt"

// BuildRequest captures a single build invocation. Value type, created per
// pipeline run.
type BuildRequest struct {
	Target      TargetSpec
	ReleaseMode bool
	SourceRoot  string
	// UniquePath requests a timestamped artifact path instead of the
	// deterministic per-(triple, profile) path that repeated runs overwrite.
	UniquePath bool
}

// Profile returns the build profile name derived from the release flag.
func (r BuildRequest) Profile() string {
	if r.ReleaseMode {
		return "release"
	}
	return "debug"
}

// Validate checks the request and its embedded target.
func (r BuildRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if r.SourceRoot == "" {
		return fmt.Errorf("build request source root is required")
	}
	return nil
}

// Artifact is the compiled output produced for a specific triple. Owned by
// the pipeline run until handed to the deployer.
type Artifact struct {
	LocalPath string
	SizeBytes uint64
	Triple    Triple
}

// MatchesTarget reports whether the artifact was built for the given spec.
// The deployer refuses artifacts where this does not hold.
func (a Artifact) MatchesTarget(spec TargetSpec) bool {
	return a.Triple == spec.Triple
}
