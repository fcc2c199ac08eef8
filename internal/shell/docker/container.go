package docker

import (
	"context"
	"log/slog"
	"time"

	"github.com/docker/go-units"
	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Container Manager
// =============================================================================

// DefaultStopTimeout bounds how long a previous instance gets to exit.
const DefaultStopTimeout = 10 * time.Second

// ContainerManager replaces the single live container of a deployment target.
type ContainerManager struct {
	client      Client
	images      *ImageManager
	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewContainerManager creates a new ContainerManager. Stale rollback images
// are removed through images once the previous container is gone.
func NewContainerManager(client Client, images *ImageManager, logger *slog.Logger) *ContainerManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContainerManager{
		client:      client,
		images:      images,
		stopTimeout: DefaultStopTimeout,
		logger:      logger,
	}
}

// ReplaceResult is the outcome of a container replacement.
type ReplaceResult struct {
	ContainerID string
	Replaced    []string // IDs of removed previous instances
	Warnings    []Warning
}

// ReplaceContainer stops and removes any container named plan.Name, removes
// the stale old image, then creates and starts a new container from plan.
// Any failure aborts the replacement with the underlying error.
func (m *ContainerManager) ReplaceContainer(ctx context.Context, plan deployment.ContainerPlan) (ReplaceResult, error) {
	var result ReplaceResult

	existing, err := m.client.ListContainers(ctx, ListOptions{All: true, Name: plan.Name})
	if err != nil {
		return result, err
	}

	for _, c := range existing {
		m.logger.Info("stopping previous container", "container", c.Name, "id", c.ID, "state", c.State)
		timeout := m.stopTimeout
		if err := m.client.StopContainer(ctx, c.ID, &timeout); err != nil {
			return result, err
		}
		if err := m.client.RemoveContainer(ctx, c.ID, RemoveOptions{}); err != nil {
			return result, err
		}
		result.Replaced = append(result.Replaced, c.ID)
	}

	if m.images != nil {
		result.Warnings = append(result.Warnings, m.images.FinalizeReplacement(ctx, plan.Name)...)
	}

	containerID, err := m.client.CreateContainer(ctx, specFromPlan(plan))
	if err != nil {
		return result, err
	}
	result.ContainerID = containerID

	if err := m.client.StartContainer(ctx, containerID); err != nil {
		return result, err
	}

	m.logger.Info("started container",
		"container", plan.Name,
		"id", containerID,
		"image", plan.Image,
		"memory", units.BytesSize(float64(plan.Resources.MemoryBytes)),
		"cpus", plan.Resources.CPUs(),
	)
	return result, nil
}

// Teardown stops and removes a container started by this deployment.
func (m *ContainerManager) Teardown(ctx context.Context, containerID string) error {
	timeout := m.stopTimeout
	if err := m.client.StopContainer(ctx, containerID, &timeout); err != nil {
		return err
	}
	return m.client.RemoveContainer(ctx, containerID, RemoveOptions{Force: true})
}

func specFromPlan(plan deployment.ContainerPlan) ContainerSpec {
	spec := ContainerSpec{
		Name:   plan.Name,
		Image:  plan.Image,
		Env:    plan.Env,
		Labels: plan.Labels,
		RestartPolicy: RestartPolicy{
			Name: plan.RestartPolicy,
		},
		Resources: ResourceLimits{
			MemoryBytes:     plan.Resources.MemoryBytes,
			MemorySwapBytes: plan.Resources.SwapBytes,
			CPUQuota:        plan.Resources.CPUQuota,
			CPUPeriod:       plan.Resources.CPUPeriod,
		},
	}
	if plan.ExposedPort > 0 {
		spec.ExposedPorts = []int{plan.ExposedPort}
	}
	return spec
}
