package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient creates a new Docker client.
// If host is empty and DOCKER_HOST is unset, common socket paths are tried
// so Docker Desktop and Colima are found without extra configuration.
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}

	switch {
	case host != "":
		opts = append(opts, client.WithHost(host))
	case os.Getenv("DOCKER_HOST") == "":
		if sock := findSocket(); sock != "" {
			opts = append(opts, client.WithHost("unix://"+sock))
		}
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", fmt.Sprintf("failed to create client: %v", err), ErrConnectionFailed)
	}

	return &DockerClient{cli: cli}, nil
}

// findSocket returns the first existing Docker socket path, or "".
func findSocket() string {
	candidates := []string{"/var/run/docker.sock"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// engineError classifies an SDK error, mapping connection failures and
// not-found results onto package sentinels.
func engineError(op, entity, id string, err error, notFound error) error {
	switch {
	case client.IsErrConnectionFailed(err):
		return NewDockerError(op, entity, id, err.Error(), ErrConnectionFailed)
	case notFound != nil && errdefs.IsNotFound(err):
		return NewDockerError(op, entity, id, notFound.Error(), notFound)
	}
	return NewDockerError(op, entity, id, err.Error(), err)
}

// =============================================================================
// Image Operations
// =============================================================================

// ListImages returns local images matching reference exactly ("name:tag").
func (d *DockerClient) ListImages(ctx context.Context, reference string) ([]ImageInfo, error) {
	images, err := d.cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", reference)),
	})
	if err != nil {
		return nil, engineError("ListImages", "image", reference, err, nil)
	}

	result := make([]ImageInfo, 0, len(images))
	for _, img := range images {
		result = append(result, ImageInfo{
			ID:       img.ID,
			RepoTags: img.RepoTags,
			Size:     img.Size,
		})
	}
	return result, nil
}

// TagImage adds the target reference to the source image.
func (d *DockerClient) TagImage(ctx context.Context, source, target string) error {
	if err := d.cli.ImageTag(ctx, source, target); err != nil {
		return engineError("TagImage", "image", source, err, ErrImageNotFound)
	}
	return nil
}

// RemoveImage removes an image reference. The image itself is deleted once
// no tag refers to it.
func (d *DockerClient) RemoveImage(ctx context.Context, reference string) error {
	_, err := d.cli.ImageRemove(ctx, reference, image.RemoveOptions{PruneChildren: true})
	if err != nil {
		if errdefs.IsConflict(err) {
			return NewDockerError("RemoveImage", "image", reference, "image is in use", ErrImageInUse)
		}
		return engineError("RemoveImage", "image", reference, err, ErrImageNotFound)
	}
	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

// CreateContainer creates a new container from the given spec.
func (d *DockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	config := &container.Config{
		Image:  spec.Image,
		Env:    spec.Env,
		Labels: spec.Labels,
	}

	if len(spec.ExposedPorts) > 0 {
		exposed := nat.PortSet{}
		for _, p := range spec.ExposedPorts {
			exposed[nat.Port(fmt.Sprintf("%d/tcp", p))] = struct{}{}
		}
		config.ExposedPorts = exposed
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:     spec.Resources.MemoryBytes,
			MemorySwap: spec.Resources.MemorySwapBytes,
			CPUQuota:   spec.Resources.CPUQuota,
			CPUPeriod:  spec.Resources.CPUPeriod,
		},
	}

	if spec.RestartPolicy.Name != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name:              container.RestartPolicyMode(spec.RestartPolicy.Name),
			MaximumRetryCount: spec.RestartPolicy.MaximumRetryCount,
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		if errdefs.IsConflict(err) {
			return "", NewDockerError("CreateContainer", "container", spec.Name, "container already exists", ErrContainerAlreadyExists)
		}
		return "", engineError("CreateContainer", "container", spec.Name, err, ErrImageNotFound)
	}

	return resp.ID, nil
}

// StartContainer starts a stopped container.
func (d *DockerClient) StartContainer(ctx context.Context, containerID string) error {
	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return engineError("StartContainer", "container", containerID, err, ErrContainerNotFound)
	}
	return nil
}

// StopContainer stops a running container.
func (d *DockerClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	stopOptions := container.StopOptions{}
	if timeout != nil {
		seconds := int(timeout.Seconds())
		stopOptions.Timeout = &seconds
	}

	if err := d.cli.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return engineError("StopContainer", "container", containerID, err, ErrContainerNotFound)
	}
	return nil
}

// RemoveContainer removes a container.
func (d *DockerClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         opts.Force,
		RemoveVolumes: opts.RemoveVolumes,
	})
	if err != nil {
		return engineError("RemoveContainer", "container", containerID, err, ErrContainerNotFound)
	}
	return nil
}

// ListContainers returns containers matching the given options. A name
// filter matches exactly; the engine's name filter is a pattern match.
func (d *DockerClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	listOpts := container.ListOptions{All: opts.All}
	if opts.Name != "" {
		listOpts.Filters = filters.NewArgs(filters.Arg("name", "^/?"+opts.Name+"$"))
	}

	containers, err := d.cli.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, engineError("ListContainers", "container", opts.Name, err, nil)
	}

	var result []ContainerInfo
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		if opts.Name != "" && name != opts.Name {
			continue
		}

		result = append(result, ContainerInfo{
			ID:        c.ID,
			Name:      name,
			Image:     c.Image,
			State:     string(c.State),
			CreatedAt: time.Unix(c.Created, 0),
			Labels:    c.Labels,
		})
	}

	return result, nil
}

// =============================================================================
// Network Operations
// =============================================================================

// ListNetworks returns networks whose name is exactly name.
func (d *DockerClient) ListNetworks(ctx context.Context, name string) ([]NetworkInfo, error) {
	networks, err := d.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, engineError("ListNetworks", "network", name, err, nil)
	}

	var result []NetworkInfo
	for _, n := range networks {
		if n.Name != name {
			continue
		}
		result = append(result, NetworkInfo{ID: n.ID, Name: n.Name, Driver: n.Driver})
	}
	return result, nil
}

// CreateNetwork creates a new Docker network.
func (d *DockerClient) CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	driver := spec.Driver
	if driver == "" {
		driver = "bridge"
	}

	resp, err := d.cli.NetworkCreate(ctx, spec.Name, network.CreateOptions{
		Driver: driver,
		Labels: spec.Labels,
	})
	if err != nil {
		if errdefs.IsConflict(err) || strings.Contains(err.Error(), "already exists") {
			return "", NewDockerError("CreateNetwork", "network", spec.Name, "network already exists", ErrNetworkAlreadyExists)
		}
		return "", engineError("CreateNetwork", "network", spec.Name, err, nil)
	}

	return resp.ID, nil
}

// InspectNetwork returns the network with the addresses of every attached container.
func (d *DockerClient) InspectNetwork(ctx context.Context, networkID string) (*NetworkDetails, error) {
	resp, err := d.cli.NetworkInspect(ctx, networkID, network.InspectOptions{Verbose: true})
	if err != nil {
		return nil, engineError("InspectNetwork", "network", networkID, err, ErrNetworkNotFound)
	}

	details := &NetworkDetails{
		NetworkInfo: NetworkInfo{ID: resp.ID, Name: resp.Name, Driver: resp.Driver},
		Endpoints:   make(map[string]Endpoint, len(resp.Containers)),
	}
	for id, ep := range resp.Containers {
		details.Endpoints[id] = Endpoint{
			Name:        ep.Name,
			IPv4Address: ep.IPv4Address,
			IPv6Address: ep.IPv6Address,
		}
	}
	return details, nil
}

// ConnectNetwork connects a container to a network.
func (d *DockerClient) ConnectNetwork(ctx context.Context, networkID, containerID string) error {
	if err := d.cli.NetworkConnect(ctx, networkID, containerID, nil); err != nil {
		return engineError("ConnectNetwork", "network", networkID, err, ErrNetworkNotFound)
	}
	return nil
}

// DisconnectNetwork disconnects a container from a network.
func (d *DockerClient) DisconnectNetwork(ctx context.Context, networkID, containerID string, force bool) error {
	if err := d.cli.NetworkDisconnect(ctx, networkID, containerID, force); err != nil {
		return engineError("DisconnectNetwork", "network", networkID, err, ErrNetworkNotFound)
	}
	return nil
}
