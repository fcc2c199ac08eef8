package deployment

import "path/filepath"

// =============================================================================
// Build Spec
// =============================================================================

// BuildSpec is derived fresh for every deployment attempt.
type BuildSpec struct {
	SourcePath          string
	Environment         Environment
	HasCustomDockerfile bool
}

// =============================================================================
// Build Strategy
// =============================================================================

// StrategyKind names a build strategy for logs and metrics.
type StrategyKind string

const (
	StrategyCustom    StrategyKind = "custom"
	StrategyGenerated StrategyKind = "generated"
)

// BuildStrategy is either CustomDockerfile or GeneratedDockerfile.
type BuildStrategy interface {
	Kind() StrategyKind
	isBuildStrategy()
}

// CustomDockerfile builds from the tenant's own Dockerfile.
type CustomDockerfile struct {
	Path string
}

func (CustomDockerfile) Kind() StrategyKind { return StrategyCustom }
func (CustomDockerfile) isBuildStrategy()   {}

// GeneratedDockerfile builds from a Dockerfile rendered by the template generator.
type GeneratedDockerfile struct {
	Content string
}

func (GeneratedDockerfile) Kind() StrategyKind { return StrategyGenerated }
func (GeneratedDockerfile) isBuildStrategy()   {}

// ResolveStrategy picks the build strategy for spec. The generator is only
// invoked when the source tree has no Dockerfile of its own.
func ResolveStrategy(spec BuildSpec, generate func(Environment) string) BuildStrategy {
	if spec.HasCustomDockerfile {
		return CustomDockerfile{Path: filepath.Join(spec.SourcePath, DockerfileName)}
	}
	return GeneratedDockerfile{Content: generate(spec.Environment)}
}
