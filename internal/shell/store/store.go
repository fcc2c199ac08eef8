// Package store provides persistence for project owners, projects and their
// stored environment variables.
package store

import (
	"context"
	"time"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for projects.
type Store interface {
	// Owner operations
	CreateOwner(ctx context.Context, name string) (*Owner, error)
	GetOwner(ctx context.Context, name string) (*Owner, error)

	// Project operations
	CreateProject(ctx context.Context, owner, name string, env deployment.Environment) (*Project, error)
	GetProject(ctx context.Context, owner, name string) (*Project, error)
	ListProjects(ctx context.Context, owner string) ([]Project, error)

	// Environment operations
	GetEnvironment(ctx context.Context, owner, project string) (deployment.Environment, error)
	SetEnvironment(ctx context.Context, owner, project string, env deployment.Environment) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Entities
// =============================================================================

// Owner is a user or group that owns projects.
type Owner struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Project is one deployable source tree of an owner.
type Project struct {
	ID          string
	Owner       string
	Name        string
	Environment deployment.Environment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
