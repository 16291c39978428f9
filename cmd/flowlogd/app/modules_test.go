package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleNameSetAndString(t *testing.T) {
	var m moduleName
	require.NoError(t, m.Set("routes"))
	assert.Equal(t, Routes, m)
	assert.Equal(t, "routes", m.String())

	require.Error(t, m.Set("bogus"))
}

func TestOrderedDepsRespectsDependencyOrder(t *testing.T) {
	deps := orderedDeps(All)
	pos := map[moduleName]int{}
	for i, m := range deps {
		pos[m] = i
	}

	require.Contains(t, pos, Store)
	require.Contains(t, pos, HostID)
	require.Contains(t, pos, Routes)

	assert.Less(t, pos[Store], pos[HostID], "store must init before host-id")
	assert.Less(t, pos[HostID], pos[Routes], "host-id must init before routes")
}

func TestOrderedDepsDedupesSharedDependency(t *testing.T) {
	deps := orderedDeps(Routes)
	seen := map[moduleName]bool{}
	for _, m := range deps {
		assert.False(t, seen[m], "module %s listed more than once", m)
		seen[m] = true
	}
}
