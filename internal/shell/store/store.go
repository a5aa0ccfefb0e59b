package store

import (
	"context"

	"github.com/maestro-sh/maestro/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for Maestro entities. The core
// treats format and location as opaque.
type Store interface {
	// Strategy operations. Strategy names are globally unique.
	PutStrategy(ctx context.Context, strategy *domain.Strategy) error
	GetStrategy(ctx context.Context, name string) (*domain.Strategy, error)
	DeleteStrategy(ctx context.Context, name string) error
	ListStrategies(ctx context.Context, opts ListOptions) ([]domain.Strategy, error)

	// Deployment record operations.
	PutDeployment(ctx context.Context, deployment *domain.Deployment) error
	GetDeployment(ctx context.Context, name string) (*domain.Deployment, error)
	DeleteDeployment(ctx context.Context, name string) error
	ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
