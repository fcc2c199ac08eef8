package docker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pemasak/pws/internal/core/deployment"
	"github.com/pemasak/pws/internal/core/dockerfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuildTarget(t *testing.T) deployment.Target {
	t.Helper()
	target, err := deployment.NewTarget("alice", "blog", t.TempDir())
	require.NoError(t, err)
	return target
}

func testEnv() deployment.Environment {
	return deployment.NewEnvironment(map[string]string{
		"SECRET_KEY": "s3cr3t",
		"DEBUG":      "0",
	})
}

// =============================================================================
// HasDockerfile Tests
// =============================================================================

func TestHasDockerfile(t *testing.T) {
	dir := t.TempDir()

	has, err := HasDockerfile(dir)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	has, err = HasDockerfile(dir)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHasDockerfile_DirectoryIsNotADockerfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Dockerfile"), 0o755))

	has, err := HasDockerfile(dir)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHasDockerfile_MissingSource(t *testing.T) {
	_, err := HasDockerfile(filepath.Join(t.TempDir(), "typo"))
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestCheckSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "README")
	require.NoError(t, os.WriteFile(file, []byte("hi\n"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"directory", dir, false},
		{"missing", filepath.Join(dir, "nonexistent"), true},
		{"regular file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSource(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSource)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// Build Tests
// =============================================================================

func TestBuild_CustomDockerfileArgs(t *testing.T) {
	target := testBuildTarget(t)
	runner := &fakeRunner{output: "Step 1/1 : FROM scratch\n"}
	b := NewBuilder(BuilderConfig{Runner: runner, TempDir: t.TempDir()})

	log, err := b.Build(context.Background(), BuildRequest{
		Target:      target,
		BuildID:     "build-1",
		Environment: testEnv(),
		Strategy:    deployment.CustomDockerfile{Path: filepath.Join(target.SourcePath, "Dockerfile")},
		Limits:      deployment.DefaultLimits(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Step 1/1 : FROM scratch\n", log)

	assert.Equal(t, []string{
		"build",
		"--cpu-period=100000",
		"--cpu-quota=50000",
		"-t", "alice-blog:latest",
		"-f", filepath.Join(target.SourcePath, "Dockerfile"),
		"--label", "com.pemasak.build=build-1",
		"--build-arg", "DEBUG=0",
		"--build-arg", "SECRET_KEY=s3cr3t",
		target.SourcePath,
	}, runner.lastArgs())
}

func TestBuild_PullFlag(t *testing.T) {
	target := testBuildTarget(t)
	runner := &fakeRunner{}
	b := NewBuilder(BuilderConfig{Runner: runner, Pull: true})

	_, err := b.Build(context.Background(), BuildRequest{
		Target:   target,
		Strategy: deployment.CustomDockerfile{Path: "Dockerfile"},
	})
	require.NoError(t, err)
	assert.Contains(t, runner.lastArgs(), "--pull")
}

func TestBuild_CustomLimits(t *testing.T) {
	target := testBuildTarget(t)
	runner := &fakeRunner{}
	b := NewBuilder(BuilderConfig{Runner: runner})

	_, err := b.Build(context.Background(), BuildRequest{
		Target:   target,
		Strategy: deployment.CustomDockerfile{Path: "Dockerfile"},
		Limits:   deployment.Limits{CPUQuota: 25000, CPUPeriod: 50000},
	})
	require.NoError(t, err)
	args := runner.lastArgs()
	assert.Contains(t, args, "--cpu-period=50000")
	assert.Contains(t, args, "--cpu-quota=25000")
}

func TestBuild_GeneratedDockerfileIsRemoved(t *testing.T) {
	target := testBuildTarget(t)
	tempDir := t.TempDir()
	runner := &fakeRunner{}
	b := NewBuilder(BuilderConfig{Runner: runner, TempDir: tempDir})

	env := testEnv()
	content := dockerfile.Generate(env)
	_, err := b.Build(context.Background(), BuildRequest{
		Target:      target,
		Environment: env,
		Strategy:    deployment.GeneratedDockerfile{Content: content},
	})
	require.NoError(t, err)

	// The build saw the generated file, then it was removed.
	require.Len(t, runner.dockerfile, 1)
	assert.Equal(t, content, runner.dockerfile[0])

	path := argAfter(runner.lastArgs(), "-f")
	assert.Equal(t, tempDir, filepath.Dir(path))
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_GeneratedDockerfileNamesAreUnique(t *testing.T) {
	target := testBuildTarget(t)
	runner := &fakeRunner{}
	b := NewBuilder(BuilderConfig{Runner: runner, TempDir: t.TempDir()})

	req := BuildRequest{Target: target, Strategy: deployment.GeneratedDockerfile{Content: "FROM scratch\n"}}
	_, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	first := argAfter(runner.lastArgs(), "-f")

	_, err = b.Build(context.Background(), req)
	require.NoError(t, err)
	second := argAfter(runner.lastArgs(), "-f")

	assert.NotEqual(t, first, second)
}

func TestBuild_FailureCarriesLog(t *testing.T) {
	target := testBuildTarget(t)
	tempDir := t.TempDir()
	runner := &fakeRunner{output: "ERROR: failed to solve\n", err: errors.New("exit status 1")}
	b := NewBuilder(BuilderConfig{Runner: runner, TempDir: tempDir})

	log, err := b.Build(context.Background(), BuildRequest{
		Target:   target,
		Strategy: deployment.GeneratedDockerfile{Content: "FROM scratch\n"},
	})
	require.Error(t, err)
	assert.Equal(t, "ERROR: failed to solve\n", log)
	assert.ErrorIs(t, err, ErrBuildFailed)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, deployment.StrategyGenerated, buildErr.Strategy)
	assert.Equal(t, "ERROR: failed to solve\n", buildErr.Log)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "generated dockerfile must not outlive a failed build")
}

func TestBuild_FailureLeavesNoLatestImage(t *testing.T) {
	engine := newFakeClient()
	target := testBuildTarget(t)
	runner := &fakeRunner{engine: engine, err: errors.New("exit status 1")}
	b := NewBuilder(BuilderConfig{Runner: runner})

	_, err := b.Build(context.Background(), BuildRequest{
		Target:   target,
		Strategy: deployment.CustomDockerfile{Path: "Dockerfile"},
	})
	require.Error(t, err)
	assert.False(t, engine.hasImage("alice-blog:latest"))
}

func TestExecRunner_CapturesOutputAndExitStatus(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	out, err := ExecRunner{}.Run(context.Background(), sh, "-c", "echo out; echo err >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")
}
