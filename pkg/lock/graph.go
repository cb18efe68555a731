package lock

// WaitForGraph is a directed graph of transaction-to-transaction
// waits-on edges. An edge waiter -> holder exists only while the waiter
// is blocked on a lock held by the holder; a cycle means deadlock.
type WaitForGraph struct {
	edges map[uint64]map[uint64]struct{}
}

func NewWaitForGraph() *WaitForGraph {
	return &WaitForGraph{edges: make(map[uint64]map[uint64]struct{})}
}

func (g *WaitForGraph) AddEdge(waiter, holder uint64) {
	if g.edges[waiter] == nil {
		g.edges[waiter] = make(map[uint64]struct{})
	}
	g.edges[waiter][holder] = struct{}{}
}

// RemoveWaiter drops txID's outgoing edges only. Used when a waiter is
// granted its lock: transactions still waiting on txID keep their edges.
func (g *WaitForGraph) RemoveWaiter(txID uint64) {
	delete(g.edges, txID)
}

// RemoveTx drops every edge with txID at either endpoint. Only valid
// when txID terminates and its locks are released, since waiters parked
// on txID are woken to re-add their edges.
func (g *WaitForGraph) RemoveTx(txID uint64) {
	delete(g.edges, txID)
	for waiter, holders := range g.edges {
		delete(holders, txID)
		if len(holders) == 0 {
			delete(g.edges, waiter)
		}
	}
}

// HasCycle runs a depth-first search from every waiting transaction,
// tracking the current recursion stack; an edge into a node already on
// the stack closes a cycle. O(V+E) over the live transaction set.
func (g *WaitForGraph) HasCycle() bool {
	visited := make(map[uint64]bool)
	onStack := make(map[uint64]bool)
	for txID := range g.edges {
		if !visited[txID] && g.dfs(txID, visited, onStack) {
			return true
		}
	}
	return false
}

func (g *WaitForGraph) dfs(txID uint64, visited, onStack map[uint64]bool) bool {
	visited[txID] = true
	onStack[txID] = true
	for next := range g.edges[txID] {
		if !visited[next] {
			if g.dfs(next, visited, onStack) {
				return true
			}
		} else if onStack[next] {
			return true
		}
	}
	onStack[txID] = false
	return false
}

// Len returns the number of transactions currently waiting.
func (g *WaitForGraph) Len() int {
	return len(g.edges)
}
