package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pemasak/pws/internal/core/deployment"
	"github.com/pemasak/pws/internal/shell/docker"
	"github.com/pemasak/pws/internal/shell/lock"
	"github.com/pemasak/pws/internal/shell/metrics"
	"github.com/pemasak/pws/internal/shell/store"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	pingTimeout = 5 * time.Second
	pushTimeout = 5 * time.Second
)

// Output formats for the deployment descriptor.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// =============================================================================
// Deploy Command
// =============================================================================

func runDeploy(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("deploy", pflag.ContinueOnError)
	owner := fs.String("owner", "", "owner of the project")
	project := fs.String("project", "", "project name")
	src := fs.String("src", "", "path to the project source tree")
	configPath := fs.String("config", "", "path to config file")
	output := fs.StringP("output", "o", OutputJSON, "descriptor format: json or yaml")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("pull", false, "always pull base images during the build")
	fs.Bool("teardown-on-failure", false, "remove the new container when a later step fails")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format := strings.ToLower(*output)
	if format != OutputJSON && format != OutputYAML {
		return configError("parse flags", fmt.Errorf("unknown output format %q", *output))
	}

	sourcePath := *src
	if sourcePath != "" {
		abs, err := filepath.Abs(sourcePath)
		if err != nil {
			return configError("resolve source", err)
		}
		sourcePath = abs
	}
	target, err := deployment.NewTarget(*owner, *project, sourcePath)
	if err != nil {
		return configError("parse flags", err)
	}

	cfg, err := LoadConfig(*configPath, fs)
	if err != nil {
		return configError("load config", err)
	}
	logger := SetupLogger(cfg)

	limits, err := cfg.ResourceLimits()
	if err != nil {
		return configError("load config", err)
	}

	locker, err := newLocker(cfg)
	if err != nil {
		return configError("setup locking", err)
	}

	client, err := connectDocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	collectors := metrics.New()
	orchestrator := docker.NewOrchestrator(docker.OrchestratorConfig{
		Client: client,
		Builder: docker.NewBuilder(docker.BuilderConfig{
			Binary:  cfg.Docker.Binary,
			TempDir: cfg.Build.TempDir,
			Pull:    cfg.Build.Pull,
			Logger:  logger,
		}),
		Store:   st,
		Locker:  locker,
		Metrics: collectors,
		Network: docker.NetworkConfig{
			Name:          cfg.Network.Name,
			Driver:        cfg.Network.Driver,
			DefaultBridge: cfg.Network.DefaultBridge,
		},
		Routing: docker.RoutingConfig{
			BaseDomain:   cfg.Domain.BaseDomain,
			EntryPoint:   cfg.Traefik.EntryPoint,
			CertResolver: cfg.Traefik.CertResolver,
		},
		Limits:            limits,
		TeardownOnFailure: cfg.Deploy.TeardownOnFailure,
		Logger:            logger,
	})

	logger.Info("starting deployment",
		"version", Version,
		"owner", target.Owner,
		"project", target.Project,
		"source", target.SourcePath,
	)

	desc, deployErr := orchestrator.Deploy(ctx, target)
	pushMetrics(ctx, cfg, collectors, logger)

	if deployErr != nil {
		var buildErr *docker.BuildError
		if errors.As(deployErr, &buildErr) && buildErr.Log != "" {
			logger.Error("build output", "log", buildErr.Log)
		}
		return &CommandError{Op: "deploy", Err: deployErr, ExitCode: deployExitCode(deployErr)}
	}

	return writeDescriptor(stdout, desc, format)
}

// deployExitCode maps a failed deployment to an exit code.
func deployExitCode(err error) int {
	switch {
	case errors.Is(err, docker.ErrConnectionFailed):
		return ExitDockerError
	case errors.Is(err, store.ErrConnectionFailed):
		return ExitDatabaseError
	case errors.Is(err, docker.ErrInvalidSource):
		return ExitConfigError
	default:
		return ExitDeployError
	}
}

func writeDescriptor(w io.Writer, desc *deployment.Descriptor, format string) error {
	switch format {
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(desc); err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(desc); err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		return nil
	}
}

// =============================================================================
// Wiring
// =============================================================================

func connectDocker(ctx context.Context, cfg *Config) (*docker.DockerClient, error) {
	client, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return nil, &CommandError{Op: "connect docker", Err: err, ExitCode: ExitDockerError}
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, &CommandError{Op: "connect docker", Err: err, ExitCode: ExitDockerError}
	}
	return client, nil
}

func openStore(cfg *Config) (*store.SQLStore, error) {
	if cfg.Database.Driver == store.DriverSQLite {
		if dir := sqliteDir(cfg.Database.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &CommandError{Op: "open store", Err: err, ExitCode: ExitDatabaseError}
			}
		}
	}

	st, err := store.Open(store.Options{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		Migrate: cfg.Database.Migrate,
	})
	if err != nil {
		code := ExitDatabaseError
		if errors.Is(err, store.ErrUnsupportedDriver) {
			code = ExitConfigError
		}
		return nil, &CommandError{Op: "open store", Err: err, ExitCode: code}
	}
	return st, nil
}

// sqliteDir returns the directory holding a file-backed sqlite database.
func sqliteDir(dsn string) string {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// newLocker serializes deployments in this process and, when lock.dir is
// set, across processes sharing that directory.
func newLocker(cfg *Config) (lock.Locker, error) {
	inProcess := lock.NewKeyedMutex()
	if cfg.Lock.Dir == "" {
		return inProcess, nil
	}
	files, err := lock.NewFileLocker(cfg.Lock.Dir)
	if err != nil {
		return nil, err
	}
	return lock.Chain(inProcess, files), nil
}

func pushMetrics(ctx context.Context, cfg *Config, collectors *metrics.Collectors, logger *slog.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := collectors.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
	}
}
