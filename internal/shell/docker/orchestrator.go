package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pemasak/pws/internal/core/deployment"
	"github.com/pemasak/pws/internal/core/dockerfile"
	"github.com/pemasak/pws/internal/core/traefik"
	"github.com/pemasak/pws/internal/shell/lock"
	"github.com/pemasak/pws/internal/shell/metrics"
)

// =============================================================================
// Orchestrator - Sequences One Deployment
// =============================================================================

// EnvironmentStore returns the stored environment of a project.
type EnvironmentStore interface {
	GetEnvironment(ctx context.Context, owner, project string) (deployment.Environment, error)
}

// RoutingConfig configures the labels consumed by the reverse proxy.
type RoutingConfig struct {
	BaseDomain   string
	EntryPoint   string
	CertResolver string
}

// OrchestratorConfig contains all collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Client  Client
	Builder *Builder
	Store   EnvironmentStore
	Locker  lock.Locker         // in-process KeyedMutex when nil
	Metrics *metrics.Collectors // optional
	Network NetworkConfig
	Routing RoutingConfig
	Limits  deployment.Limits

	// TeardownOnFailure stops and removes a container started by a
	// deployment when a later step fails. Off by default: the container
	// is left running.
	TeardownOnFailure bool

	Logger *slog.Logger
}

// Orchestrator turns a source tree into a running, routed container.
type Orchestrator struct {
	store      EnvironmentStore
	builder    *Builder
	images     *ImageManager
	containers *ContainerManager
	networks   *NetworkManager
	resolver   *AddressResolver
	locker     lock.Locker
	metrics    *metrics.Collectors
	routing    RoutingConfig
	limits     deployment.Limits
	teardown   bool
	logger     *slog.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builder := cfg.Builder
	if builder == nil {
		builder = NewBuilder(BuilderConfig{Logger: logger})
	}
	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	routing := cfg.Routing
	if routing.BaseDomain == "" {
		routing.BaseDomain = "localhost"
	}
	if routing.EntryPoint == "" {
		routing.EntryPoint = traefik.DefaultEntryPoint
	}

	images := NewImageManager(cfg.Client, logger)
	return &Orchestrator{
		store:      cfg.Store,
		builder:    builder,
		images:     images,
		containers: NewContainerManager(cfg.Client, images, logger),
		networks:   NewNetworkManager(cfg.Client, cfg.Network, logger),
		resolver:   NewAddressResolver(cfg.Client, logger),
		locker:     locker,
		metrics:    cfg.Metrics,
		routing:    routing,
		limits:     cfg.Limits.WithDefaults(),
		teardown:   cfg.TeardownOnFailure,
		logger:     logger,
	}
}

// run tracks one deployment through the state machine.
type run struct {
	target    deployment.Target
	state     deployment.State
	buildID   string
	warnings  []Warning
	container string // started in this run
}

func (r *run) advance(to deployment.State) error {
	if r.state.IsTerminal() {
		return fmt.Errorf("%w: run already %s", deployment.ErrInvalidTransition, r.state)
	}
	if err := deployment.ValidateTransition(r.state, to); err != nil {
		return err
	}
	r.state = to
	return nil
}

// Deploy runs one deployment of target. Steps execute strictly in order and
// none is retried; the first failure is returned as a *StepError and side
// effects already committed stay in place.
func (o *Orchestrator) Deploy(ctx context.Context, target deployment.Target) (*deployment.Descriptor, error) {
	started := time.Now()
	r := &run{
		target:  target,
		state:   deployment.StateIdle,
		buildID: uuid.NewString(),
	}
	logger := o.logger.With("container", target.ContainerName, "build_id", r.buildID)

	unlock, err := o.locker.Lock(ctx, target.ContainerName)
	if err != nil {
		return nil, &StepError{Step: r.state, Op: "acquire lock", Err: err}
	}
	defer unlock()

	logger.Info("deploying", "owner", target.Owner, "project", target.Project, "source", target.SourcePath)

	desc, err := o.deploy(ctx, r, logger)
	if err != nil {
		failedAt := r.state
		r.state = deployment.StateFailed
		o.teardownAfterFailure(ctx, r, logger)
		o.metrics.ObserveDeploy(metrics.OutcomeFailure, string(failedAt), time.Since(started))
		logger.Error("deployment failed", "step", failedAt, "error", err)
		return nil, err
	}

	o.metrics.ObserveDeploy(metrics.OutcomeSuccess, string(r.state), time.Since(started))
	logger.Info("deployed", "ip", desc.IP, "port", desc.Port, "duration", time.Since(started))
	return desc, nil
}

func (o *Orchestrator) deploy(ctx context.Context, r *run, logger *slog.Logger) (*deployment.Descriptor, error) {
	target := r.target
	fail := func(op string, err error) error {
		return &StepError{Step: r.state, Op: op, Err: err}
	}

	// Environment and strategy are resolved before any engine mutation.
	env, err := o.store.GetEnvironment(ctx, target.Owner, target.Project)
	if err != nil {
		return nil, fail("fetch environment", err)
	}
	hasDockerfile, err := HasDockerfile(target.SourcePath)
	if err != nil {
		return nil, fail("inspect source", err)
	}
	spec := deployment.BuildSpec{
		SourcePath:          target.SourcePath,
		Environment:         env,
		HasCustomDockerfile: hasDockerfile,
	}
	strategy := deployment.ResolveStrategy(spec, dockerfile.Generate)

	// 1. Keep the current image as rollback point
	if _, err := o.images.PrepareReplacement(ctx, target.ContainerName); err != nil {
		return nil, fail("prepare image", err)
	}
	if err := r.advance(deployment.StateImagePrepared); err != nil {
		return nil, fail("prepare image", err)
	}

	// 2. Build
	buildStarted := time.Now()
	buildLog, err := o.builder.Build(ctx, BuildRequest{
		Target:      target,
		BuildID:     r.buildID,
		Environment: env,
		Strategy:    strategy,
		Limits:      o.limits,
	})
	if err != nil {
		o.metrics.ObserveBuild(string(strategy.Kind()), metrics.OutcomeFailure, time.Since(buildStarted))
		return nil, fail("build image", err)
	}
	o.metrics.ObserveBuild(string(strategy.Kind()), metrics.OutcomeSuccess, time.Since(buildStarted))
	if err := o.images.VerifyLatest(ctx, target.ContainerName); err != nil {
		return nil, fail("verify image", err)
	}
	if err := r.advance(deployment.StateBuilt); err != nil {
		return nil, fail("build image", err)
	}

	// 3. Replace the container
	plan := deployment.BuildContainerPlan(deployment.BuildContainerPlanParams{
		Target:        target,
		BuildID:       r.buildID,
		Environment:   env,
		RoutingLabels: o.routingLabels(target.ContainerName),
		Limits:        o.limits,
	})
	replaced, err := o.containers.ReplaceContainer(ctx, plan)
	o.addWarnings(r, replaced.Warnings)
	r.container = replaced.ContainerID
	if err != nil {
		return nil, fail("replace container", err)
	}
	if err := r.advance(deployment.StateContainerReplaced); err != nil {
		return nil, fail("replace container", err)
	}

	// 4. Join the shared network
	network, err := o.networks.EnsureSharedNetwork(ctx)
	if err != nil {
		return nil, fail("ensure network", err)
	}
	if err := o.networks.Attach(ctx, network, replaced.ContainerID); err != nil {
		return nil, fail("attach network", err)
	}
	if err := r.advance(deployment.StateNetworkReady); err != nil {
		return nil, fail("attach network", err)
	}

	// 5. Resolve the reachable address
	ip, err := o.resolver.ResolveAddress(ctx, network, replaced.ContainerID)
	if err != nil {
		return nil, fail("resolve address", err)
	}
	if err := r.advance(deployment.StateAddressResolved); err != nil {
		return nil, fail("resolve address", err)
	}

	// 6. Isolate from the default bridge
	o.addWarnings(r, o.networks.DetachFromDefault(ctx, replaced.ContainerID))
	if err := r.advance(deployment.StateDone); err != nil {
		return nil, fail("detach network", err)
	}

	logger.Debug("deployment steps complete", "replaced", len(replaced.Replaced), "warnings", len(r.warnings))

	return &deployment.Descriptor{
		IP:          ip,
		Port:        deployment.ServicePort,
		BuildLog:    buildLog,
		ContainerID: replaced.ContainerID,
		BuildID:     r.buildID,
		Warnings:    warningStrings(r.warnings),
	}, nil
}

func (o *Orchestrator) routingLabels(containerName string) map[string]string {
	return traefik.GenerateLabels(traefik.LabelParams{
		RouterName:   containerName,
		Hostname:     deployment.Hostname(containerName, o.routing.BaseDomain),
		Port:         deployment.ServicePort,
		EntryPoint:   o.routing.EntryPoint,
		CertResolver: o.routing.CertResolver,
		Network:      o.networks.Name(),
	})
}

func (o *Orchestrator) addWarnings(r *run, warnings []Warning) {
	for _, w := range warnings {
		o.metrics.AddWarning(w.Op)
	}
	r.warnings = append(r.warnings, warnings...)
}

// teardownAfterFailure removes a container this run started, when enabled.
func (o *Orchestrator) teardownAfterFailure(ctx context.Context, r *run, logger *slog.Logger) {
	if !o.teardown || r.container == "" {
		return
	}
	if err := o.containers.Teardown(ctx, r.container); err != nil {
		o.addWarnings(r, []Warning{{Op: "teardown container", Target: r.container, Err: err}})
		logger.Warn("failed to tear down container", "id", r.container, "error", err)
		return
	}
	logger.Info("tore down container after failure", "id", r.container)
}

func warningStrings(warnings []Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}
