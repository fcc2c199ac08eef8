package docker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Fake Engine
// =============================================================================

type fakeContainer struct {
	ID      string
	ImageID string
	Spec    ContainerSpec
	State   string
}

type fakeNetwork struct {
	Info      NetworkInfo
	Endpoints map[string]Endpoint
}

// fakeClient is an in-memory Client. Images are keyed by reference,
// containers and networks by name.
type fakeClient struct {
	mu sync.Mutex

	images     map[string]string // reference -> image ID
	containers map[string]*fakeContainer
	networks   map[string]*fakeNetwork

	// errs injects a failure for the named operation.
	errs map[string]error
	// addresses assigns endpoint addresses on connect; nil yields 172.20.0.N/16.
	addresses func(n int) (ipv4, ipv6 string)
	// failRemove fails RemoveImage for specific references.
	failRemove map[string]error
	// createNetworkRace makes CreateNetwork create the network but report a conflict.
	createNetworkRace bool

	calls []string
	seq   int
}

func newFakeClient() *fakeClient {
	f := &fakeClient{
		images:     map[string]string{},
		containers: map[string]*fakeContainer{},
		networks:   map[string]*fakeNetwork{},
		errs:       map[string]error{},
	}
	f.networks[DefaultBridgeNetwork] = &fakeNetwork{
		Info:      NetworkInfo{ID: "net-bridge", Name: DefaultBridgeNetwork, Driver: "bridge"},
		Endpoints: map[string]Endpoint{},
	}
	return f
}

func (f *fakeClient) record(op string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	if err, ok := f.errs[op]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// addImage is what a successful build leaves behind.
func (f *fakeClient) addImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = f.nextID("sha256")
}

func (f *fakeClient) hasImage(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[ref]
	return ok
}

func (f *fakeClient) container(name string) *fakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[name]
}

func (f *fakeClient) callsWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClient) containerByID(id string) *fakeContainer {
	for _, c := range f.containers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeClient) network(idOrName string) *fakeNetwork {
	if n, ok := f.networks[idOrName]; ok {
		return n
	}
	for _, n := range f.networks {
		if n.Info.ID == idOrName {
			return n
		}
	}
	return nil
}

// Image operations

func (f *fakeClient) ListImages(ctx context.Context, reference string) ([]ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListImages", reference); err != nil {
		return nil, err
	}
	id, ok := f.images[reference]
	if !ok {
		return nil, nil
	}
	return []ImageInfo{{ID: id, RepoTags: []string{reference}}}, nil
}

func (f *fakeClient) TagImage(ctx context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TagImage", source, target); err != nil {
		return err
	}
	id, ok := f.images[source]
	if !ok {
		return NewDockerError("TagImage", "image", source, "image not found", ErrImageNotFound)
	}
	f.images[target] = id
	return nil
}

func (f *fakeClient) RemoveImage(ctx context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveImage", reference); err != nil {
		return err
	}
	if err := f.failRemove[reference]; err != nil {
		return err
	}
	id, ok := f.images[reference]
	if !ok {
		return NewDockerError("RemoveImage", "image", reference, "image not found", ErrImageNotFound)
	}
	refs := 0
	for _, other := range f.images {
		if other == id {
			refs++
		}
	}
	// Dropping one of several tags only untags.
	if refs == 1 {
		for _, c := range f.containers {
			if c.ImageID == id {
				return NewDockerError("RemoveImage", "image", reference, "image is in use", ErrImageInUse)
			}
		}
	}
	delete(f.images, reference)
	return nil
}

// Container operations

func (f *fakeClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateContainer", spec.Name); err != nil {
		return "", err
	}
	if _, ok := f.containers[spec.Name]; ok {
		return "", NewDockerError("CreateContainer", "container", spec.Name, "container already exists", ErrContainerAlreadyExists)
	}
	imageID, ok := f.images[spec.Image]
	if !ok {
		return "", NewDockerError("CreateContainer", "container", spec.Name, "image not found", ErrImageNotFound)
	}
	c := &fakeContainer{ID: f.nextID("ctr"), ImageID: imageID, Spec: spec, State: "created"}
	f.containers[spec.Name] = c
	f.networks[DefaultBridgeNetwork].Endpoints[c.ID] = Endpoint{Name: spec.Name, IPv4Address: "172.17.0.2/16"}
	return c.ID, nil
}

func (f *fakeClient) StartContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("StartContainer", containerID); err != nil {
		return err
	}
	c := f.containerByID(containerID)
	if c == nil {
		return NewDockerError("StartContainer", "container", containerID, "container not found", ErrContainerNotFound)
	}
	c.State = "running"
	return nil
}

func (f *fakeClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("StopContainer", containerID); err != nil {
		return err
	}
	c := f.containerByID(containerID)
	if c == nil {
		return NewDockerError("StopContainer", "container", containerID, "container not found", ErrContainerNotFound)
	}
	c.State = "exited"
	return nil
}

func (f *fakeClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveContainer", containerID); err != nil {
		return err
	}
	c := f.containerByID(containerID)
	if c == nil {
		return NewDockerError("RemoveContainer", "container", containerID, "container not found", ErrContainerNotFound)
	}
	delete(f.containers, c.Spec.Name)
	for _, n := range f.networks {
		delete(n.Endpoints, containerID)
	}
	return nil
}

func (f *fakeClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListContainers", opts.Name); err != nil {
		return nil, err
	}
	var out []ContainerInfo
	for name, c := range f.containers {
		if opts.Name != "" && name != opts.Name {
			continue
		}
		if !opts.All && c.State != "running" {
			continue
		}
		out = append(out, ContainerInfo{ID: c.ID, Name: name, Image: c.Spec.Image, State: c.State, Labels: c.Spec.Labels})
	}
	return out, nil
}

// Network operations

func (f *fakeClient) ListNetworks(ctx context.Context, name string) ([]NetworkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListNetworks", name); err != nil {
		return nil, err
	}
	if n, ok := f.networks[name]; ok {
		return []NetworkInfo{n.Info}, nil
	}
	return nil, nil
}

func (f *fakeClient) CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateNetwork", spec.Name); err != nil {
		return "", err
	}
	if _, ok := f.networks[spec.Name]; ok {
		return "", NewDockerError("CreateNetwork", "network", spec.Name, "network already exists", ErrNetworkAlreadyExists)
	}
	n := &fakeNetwork{
		Info:      NetworkInfo{ID: f.nextID("net"), Name: spec.Name, Driver: spec.Driver},
		Endpoints: map[string]Endpoint{},
	}
	f.networks[spec.Name] = n
	if f.createNetworkRace {
		return "", NewDockerError("CreateNetwork", "network", spec.Name, "network already exists", ErrNetworkAlreadyExists)
	}
	return n.Info.ID, nil
}

func (f *fakeClient) InspectNetwork(ctx context.Context, networkID string) (*NetworkDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("InspectNetwork", networkID); err != nil {
		return nil, err
	}
	n := f.network(networkID)
	if n == nil {
		return nil, NewDockerError("InspectNetwork", "network", networkID, "network not found", ErrNetworkNotFound)
	}
	endpoints := make(map[string]Endpoint, len(n.Endpoints))
	for id, ep := range n.Endpoints {
		endpoints[id] = ep
	}
	return &NetworkDetails{NetworkInfo: n.Info, Endpoints: endpoints}, nil
}

func (f *fakeClient) ConnectNetwork(ctx context.Context, networkID, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ConnectNetwork", networkID, containerID); err != nil {
		return err
	}
	n := f.network(networkID)
	if n == nil {
		return NewDockerError("ConnectNetwork", "network", networkID, "network not found", ErrNetworkNotFound)
	}
	c := f.containerByID(containerID)
	if c == nil {
		return NewDockerError("ConnectNetwork", "container", containerID, "container not found", ErrContainerNotFound)
	}
	index := len(n.Endpoints) + 2
	ipv4, ipv6 := fmt.Sprintf("172.20.0.%d/16", index), ""
	if f.addresses != nil {
		ipv4, ipv6 = f.addresses(index)
	}
	n.Endpoints[containerID] = Endpoint{Name: c.Spec.Name, IPv4Address: ipv4, IPv6Address: ipv6}
	return nil
}

func (f *fakeClient) DisconnectNetwork(ctx context.Context, networkID, containerID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DisconnectNetwork", networkID, containerID); err != nil {
		return err
	}
	n := f.network(networkID)
	if n == nil {
		return NewDockerError("DisconnectNetwork", "network", networkID, "network not found", ErrNetworkNotFound)
	}
	if _, ok := n.Endpoints[containerID]; !ok {
		return NewDockerError("DisconnectNetwork", "container", containerID, "container not found", ErrContainerNotFound)
	}
	delete(n.Endpoints, containerID)
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("Ping")
}

func (f *fakeClient) Close() error { return nil }

// =============================================================================
// Fake Build Runner
// =============================================================================

// fakeRunner stands in for the build CLI. A successful run tags the -t
// reference on the fake engine, as a real build would.
type fakeRunner struct {
	engine *fakeClient
	output string
	err    error

	mu         sync.Mutex
	args       [][]string
	dockerfile []string // -f file content seen during each run
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, args)

	tag := argAfter(args, "-t")
	if path := argAfter(args, "-f"); path != "" {
		r.dockerfile = append(r.dockerfile, readFileOrEmpty(path))
	}

	if r.err != nil {
		return r.output, r.err
	}
	if r.engine != nil && tag != "" {
		r.engine.addImage(tag)
	}
	return r.output, nil
}

func (r *fakeRunner) lastArgs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.args) == 0 {
		return nil
	}
	return r.args[len(r.args)-1]
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// =============================================================================
// Fake Store
// =============================================================================

type fakeStore struct {
	envs map[string]deployment.Environment
	err  error
}

func (s *fakeStore) GetEnvironment(ctx context.Context, owner, project string) (deployment.Environment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.envs[owner+"/"+project], nil
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
