package docker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Image Manager
// =============================================================================

// ImageManager keeps at most one latest and one old image per container name.
type ImageManager struct {
	client Client
	logger *slog.Logger
}

// NewImageManager creates a new ImageManager.
func NewImageManager(client Client, logger *slog.Logger) *ImageManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageManager{client: client, logger: logger}
}

// PrepareReplacement re-tags an existing latest image as old and drops the
// latest tag so the next build can reuse it. It reports whether a previous
// image existed; without one it does nothing.
func (m *ImageManager) PrepareReplacement(ctx context.Context, containerName string) (bool, error) {
	latest := deployment.LatestImage(containerName).String()
	old := deployment.OldImage(containerName).String()

	images, err := m.client.ListImages(ctx, latest)
	if err != nil {
		return false, err
	}
	if len(images) == 0 {
		m.logger.Debug("no previous image", "image", latest)
		return false, nil
	}

	if err := m.client.TagImage(ctx, latest, old); err != nil {
		return false, err
	}
	if err := m.client.RemoveImage(ctx, latest); err != nil {
		return true, err
	}

	m.logger.Info("kept previous image as rollback point", "image", old)
	return true, nil
}

// VerifyLatest confirms that a build left a latest image behind.
func (m *ImageManager) VerifyLatest(ctx context.Context, containerName string) error {
	latest := deployment.LatestImage(containerName).String()

	images, err := m.client.ListImages(ctx, latest)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return NewDockerError("VerifyLatest", "image", latest, "no image found after build", ErrResourceLookup)
	}
	return nil
}

// FinalizeReplacement removes the old image if present. Failures are
// returned as warnings; a lingering old tag is tolerated.
func (m *ImageManager) FinalizeReplacement(ctx context.Context, containerName string) []Warning {
	old := deployment.OldImage(containerName).String()

	images, err := m.client.ListImages(ctx, old)
	if err != nil {
		return []Warning{m.warn("list images", old, err)}
	}
	if len(images) == 0 {
		return nil
	}

	if err := m.client.RemoveImage(ctx, old); err != nil {
		return []Warning{m.warn("remove image", old, err)}
	}

	m.logger.Info("removed rollback image", "image", old)
	return nil
}

func (m *ImageManager) warn(op, target string, err error) Warning {
	m.logger.Warn(fmt.Sprintf("failed to %s", op), "target", target, "error", err)
	return Warning{Op: op, Target: target, Err: err}
}
