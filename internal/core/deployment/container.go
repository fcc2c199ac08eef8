package deployment

// =============================================================================
// Container Plan Types
// =============================================================================

// RestartOnFailure is the restart policy of every tenant container.
const RestartOnFailure = "on-failure"

// Label keys used to identify managed containers and images.
const (
	LabelManaged = "com.pemasak.managed"
	LabelOwner   = "com.pemasak.owner"
	LabelProject = "com.pemasak.project"
	LabelBuildID = "com.pemasak.build"
)

// ContainerPlan represents a planned container configuration.
// This is the pure output of planning, ready for the shell to execute.
type ContainerPlan struct {
	Name          string
	Image         string
	Env           []string
	Labels        map[string]string
	ExposedPort   int
	Resources     Limits
	RestartPolicy string
}

// BuildContainerPlanParams contains all inputs for building a container plan.
type BuildContainerPlanParams struct {
	Target        Target
	BuildID       string
	Environment   Environment
	RoutingLabels map[string]string
	Limits        Limits
}

// =============================================================================
// Container Plan Building Functions
// =============================================================================

// BuildContainerPlan builds the ContainerPlan for a freshly built image.
//
// The function:
//   - Names the container after the target's container name
//   - Uses the target's latest image
//   - Flattens the environment to KEY=value strings
//   - Merges management labels with the routing labels
//   - Applies resource limits (zero fields fall back to defaults)
//   - Sets the on-failure restart policy
//
// Example:
//
//	plan := BuildContainerPlan(BuildContainerPlanParams{
//	    Target:        target,
//	    Environment:   env,
//	    RoutingLabels: traefik.GenerateLabels(params),
//	    Limits:        DefaultLimits(),
//	})
func BuildContainerPlan(params BuildContainerPlanParams) ContainerPlan {
	target := params.Target

	labels := map[string]string{
		LabelManaged: "true",
		LabelOwner:   target.Owner,
		LabelProject: target.Project,
	}
	if params.BuildID != "" {
		labels[LabelBuildID] = params.BuildID
	}
	for k, v := range params.RoutingLabels {
		labels[k] = v
	}

	return ContainerPlan{
		Name:          target.ContainerName,
		Image:         LatestImage(target.ContainerName).String(),
		Env:           params.Environment.Strings(),
		Labels:        labels,
		ExposedPort:   ServicePort,
		Resources:     params.Limits.WithDefaults(),
		RestartPolicy: RestartOnFailure,
	}
}
