package portmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReserveRejectsDoubleClaim(t *testing.T) {
	m := New()
	require.NoError(t, m.Reserve("127.0.0.1", 8080))

	err := m.Reserve("127.0.0.1", 8080)
	assert.Error(t, err)
}

func TestManager_ReleaseFreesTheAddress(t *testing.T) {
	m := New()
	require.NoError(t, m.Reserve("127.0.0.1", 8080))
	m.Release("127.0.0.1", 8080)

	assert.False(t, m.Reserved("127.0.0.1", 8080))
	assert.NoError(t, m.Reserve("127.0.0.1", 8080))
}

func TestManager_DistinctPortsDoNotCollide(t *testing.T) {
	m := New()
	require.NoError(t, m.Reserve("127.0.0.1", 8080))
	require.NoError(t, m.Reserve("127.0.0.1", 8081))
}
