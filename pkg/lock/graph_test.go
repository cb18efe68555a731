package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyGraphHasNoCycle(t *testing.T) {
	g := NewWaitForGraph()
	assert.False(t, g.HasCycle())
}

func TestChainIsNotACycle(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 4)
	assert.False(t, g.HasCycle())
}

func TestTwoPartyCycle(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	assert.False(t, g.HasCycle())
	g.AddEdge(2, 1)
	assert.True(t, g.HasCycle())
}

func TestThreePartyCycle(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)
	assert.True(t, g.HasCycle())
}

func TestRemoveTxBreaksCycle(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)
	g.RemoveTx(3)
	assert.False(t, g.HasCycle())
	assert.Equal(t, 2, g.Len())
}

func TestRemoveWaiterKeepsIncomingEdges(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(3, 1) // 3 is still parked on 1
	g.AddEdge(1, 2)
	g.RemoveWaiter(1) // 1 got its lock elsewhere

	// 1 later waiting on 3 must still close a cycle through 3 -> 1.
	g.AddEdge(1, 3)
	assert.True(t, g.HasCycle())
}

func TestRemoveTxDropsBothEndpoints(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	g.AddEdge(3, 1)
	g.RemoveTx(1)
	assert.Equal(t, 0, g.Len())
	assert.False(t, g.HasCycle())
}

func TestDisjointCycleIsStillFound(t *testing.T) {
	g := NewWaitForGraph()
	g.AddEdge(1, 2)
	g.AddEdge(5, 6)
	g.AddEdge(6, 5)
	assert.True(t, g.HasCycle())
}
