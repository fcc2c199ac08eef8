package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Command Runner
// =============================================================================

// CommandRunner runs an external command to completion and returns everything
// it wrote to stdout and stderr, interleaved.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (output string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// =============================================================================
// Builder
// =============================================================================

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Binary  string        // build CLI, "docker" when empty
	TempDir string        // where generated Dockerfiles are written, os.TempDir() when empty
	Pull    bool          // always pull base images
	Runner  CommandRunner // ExecRunner when nil
	Logger  *slog.Logger
}

// Builder produces <container_name>:latest images with the external build CLI.
type Builder struct {
	binary  string
	tempDir string
	pull    bool
	runner  CommandRunner
	logger  *slog.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		binary:  cfg.Binary,
		tempDir: cfg.TempDir,
		pull:    cfg.Pull,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
	}
	if b.binary == "" {
		b.binary = "docker"
	}
	if b.tempDir == "" {
		b.tempDir = os.TempDir()
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// BuildRequest describes one build.
type BuildRequest struct {
	Target      deployment.Target
	BuildID     string
	Environment deployment.Environment
	Strategy    deployment.BuildStrategy
	Limits      deployment.Limits
}

// CheckSource returns ErrInvalidSource unless sourcePath is an existing directory.
func CheckSource(sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidSource, sourcePath)
		}
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, sourcePath)
	}
	return nil
}

// HasDockerfile reports whether sourcePath holds a regular file named Dockerfile.
// The source directory itself must exist.
func HasDockerfile(sourcePath string) (bool, error) {
	if err := CheckSource(sourcePath); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(sourcePath, deployment.DockerfileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat dockerfile: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Build runs the build and returns the captured log. On a non-zero exit the
// returned *BuildError carries the log too. Generated Dockerfiles are written
// to a uniquely named file that is removed before Build returns.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (string, error) {
	var dockerfilePath string

	switch s := req.Strategy.(type) {
	case deployment.CustomDockerfile:
		dockerfilePath = s.Path
	case deployment.GeneratedDockerfile:
		path, err := b.writeDockerfile(req.Target.ContainerName, s.Content)
		if err != nil {
			return "", &BuildError{Strategy: s.Kind(), Err: err}
		}
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				b.logger.Warn("failed to remove generated dockerfile", "path", path, "error", err)
			}
		}()
		dockerfilePath = path
	default:
		return "", fmt.Errorf("unsupported build strategy %T", req.Strategy)
	}

	image := deployment.LatestImage(req.Target.ContainerName).String()
	args := b.buildArgs(req, image, dockerfilePath)

	b.logger.Info("building image",
		"image", image,
		"strategy", req.Strategy.Kind(),
		"build_id", req.BuildID,
	)

	output, err := b.runner.Run(ctx, b.binary, args...)
	if err != nil {
		b.logger.Error("image build failed", "image", image, "error", err)
		return output, &BuildError{Strategy: req.Strategy.Kind(), Log: output, Err: err}
	}

	b.logger.Info("image built", "image", image, "log_bytes", len(output))
	return output, nil
}

// buildArgs assembles the CLI arguments: CPU constraints, tag, Dockerfile,
// one --build-arg per environment entry, then the source directory.
func (b *Builder) buildArgs(req BuildRequest, image, dockerfilePath string) []string {
	limits := req.Limits.WithDefaults()

	args := []string{
		"build",
		"--cpu-period=" + strconv.FormatInt(limits.CPUPeriod, 10),
		"--cpu-quota=" + strconv.FormatInt(limits.CPUQuota, 10),
		"-t", image,
		"-f", dockerfilePath,
	}
	if b.pull {
		args = append(args, "--pull")
	}
	if req.BuildID != "" {
		args = append(args, "--label", deployment.LabelBuildID+"="+req.BuildID)
	}
	for _, v := range req.Environment {
		args = append(args, "--build-arg", v.String())
	}
	return append(args, req.Target.SourcePath)
}

func (b *Builder) writeDockerfile(containerName, content string) (string, error) {
	path := filepath.Join(b.tempDir, fmt.Sprintf("Dockerfile.%s.%s", containerName, uuid.NewString()))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write generated dockerfile: %w", err)
	}
	return path, nil
}
