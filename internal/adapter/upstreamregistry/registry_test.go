package upstreamregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func TestStatic_GroupsAndLookup(t *testing.T) {
	g1 := &domain.UpstreamGroup{ID: "g1"}
	g2 := &domain.UpstreamGroup{ID: "g2"}
	s := New([]*domain.UpstreamGroup{g1, g2})

	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	got, err := s.Group(context.Background(), "g1")
	require.NoError(t, err)
	assert.Same(t, g1, got)

	_, err = s.Group(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStatic_ReloadReplacesContents(t *testing.T) {
	s := New([]*domain.UpstreamGroup{{ID: "g1"}})

	require.NoError(t, s.Reload(context.Background(), []*domain.UpstreamGroup{{ID: "g2"}}))

	_, err := s.Group(context.Background(), "g1")
	assert.Error(t, err)

	got, err := s.Group(context.Background(), "g2")
	require.NoError(t, err)
	assert.Equal(t, "g2", got.ID)
}
