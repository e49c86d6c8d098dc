package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesStartWithOneEmptyRoute(t *testing.T) {
	r := NewRoutes(4, 2)
	assert.Equal(t, 1, r.RouteCount())
	assert.Equal(t, 6, r.Size())
	assert.Equal(t, 0, r.DepotOf(0))
	assert.Equal(t, 0, r.Successor(0))
	assert.Equal(t, 0, r.Predecessor(0))

	seq, err := r.Sequence(0)
	require.NoError(t, err)
	assert.Empty(t, seq)
	for n := 1; n <= 4; n++ {
		assert.False(t, r.IsRouted(n))
		assert.False(t, r.IsDepot(n))
	}
}

func TestCreateRouteUsesDepotAliasesUpToFleetSize(t *testing.T) {
	r := NewRoutes(4, 3)
	k, err := r.CreateRoute()
	require.NoError(t, err)
	assert.Equal(t, 1, k)
	assert.Equal(t, 5, r.DepotOf(1))
	assert.True(t, r.IsDepot(5))

	k, err = r.CreateRoute()
	require.NoError(t, err)
	assert.Equal(t, 6, r.DepotOf(k))

	_, err = r.CreateRoute()
	require.ErrorIs(t, err, ErrRouteLimit)
	require.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, 3, r.RouteCount())
}

func TestResetDropsRoutesAndLinks(t *testing.T) {
	r := NewRoutes(2, 2)
	_, err := r.CreateRoute()
	require.NoError(t, err)
	r.SetSuccessor(0, 1)
	r.SetPredecessor(1, 0)
	r.SetSuccessor(1, 0)
	r.SetPredecessor(0, 1)
	require.True(t, r.IsRouted(1))

	r.Reset()
	assert.Equal(t, 1, r.RouteCount())
	assert.False(t, r.IsRouted(1))
	assert.Equal(t, unlinked, r.Successor(3))
}

func TestSequenceDetectsBrokenChain(t *testing.T) {
	r := NewRoutes(3, 1)
	r.SetSuccessor(0, 1)
	r.SetSuccessor(1, 2)
	r.SetSuccessor(2, 1)

	_, err := r.Sequence(0)
	require.ErrorIs(t, err, ErrBrokenRoute)
	require.ErrorIs(t, r.Verify(), ErrBrokenRoute)

	_, err = r.Sequence(4)
	require.ErrorIs(t, err, ErrInvariant)
}
