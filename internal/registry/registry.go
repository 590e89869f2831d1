// Package registry holds the read-only target registry. It is built once at
// startup from the validated configuration; there is no mutation API.
package registry

import (
	"sort"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// Registry resolves logical target names to their specs.
type Registry struct {
	targets map[string]domain.TargetSpec
}

// New builds a registry from loaded specs. Duplicate names are a fatal
// configuration error, reported here rather than at resolve time.
func New(specs []domain.TargetSpec) (*Registry, error) {
	targets := make(map[string]domain.TargetSpec, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "invalid target spec")
		}
		if _, exists := targets[spec.Name]; exists {
			return nil, errdefs.New(errdefs.CodeInvalidConfig, "duplicate target name %q", spec.Name)
		}
		targets[spec.Name] = spec
	}
	return &Registry{targets: targets}, nil
}

// Resolve returns the spec for an exact name match.
func (r *Registry) Resolve(name string) (domain.TargetSpec, error) {
	spec, ok := r.targets[name]
	if !ok {
		return domain.TargetSpec{}, errdefs.New(errdefs.CodeUnknownTarget, "target %q is not in the registry (known: %v)", name, r.Names())
	}
	return spec, nil
}

// Names returns all registered target names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
