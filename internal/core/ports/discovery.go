package ports

import (
	"context"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// UpstreamRegistry is the source of truth for which upstream groups and
// servers exist, reloaded from config (spec.md §6) and consulted by the
// reverse proxy (C9) when resolving a route's UpstreamGroup.
type UpstreamRegistry interface {
	// Groups returns every configured upstream group.
	Groups(ctx context.Context) ([]*domain.UpstreamGroup, error)

	// Group returns a single group by id, or an error if it is unknown.
	Group(ctx context.Context, id string) (*domain.UpstreamGroup, error)

	// Reload replaces the registry's contents, used when config is
	// revalidated (spec.md §6: hot-reload re-validates and logs, it does
	// not hot-swap live traffic).
	Reload(ctx context.Context, groups []*domain.UpstreamGroup) error
}
