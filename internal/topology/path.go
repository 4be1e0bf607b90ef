package topology

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/meshnode/internal/routingtable"
)

// Kind is the closed set of outcomes the Path Engine can report for a
// destination.
type Kind int

const (
	// KindLocal means the destination is this node itself.
	KindLocal Kind = iota
	// KindNextHop means NextHopID is the first peer to send to.
	KindNextHop
	// KindNoRoute means no path to the destination exists.
	KindNoRoute
)

// Result is the Path Engine's answer for one destination.
type Result struct {
	Kind      Kind
	NextHopID string
}

// NextHop computes the next hop toward dest from selfID, given a snapshot
// of the routing table and the LSA database.
//
// Edge cases, in order: dest == selfID is Local. A directly Connected
// routing-table peer is returned immediately without requiring an LSA from
// it (the fast path). An empty LSA database with a destination that is not
// a directly Connected peer is NoRoute. Otherwise the LSA graph is built and searched breadth-first
// (uniform edge weight, equivalent to Dijkstra); ties between equally
// short paths are broken by preferring the lexicographically first
// neighbor, to keep forwarding deterministic.
func NextHop(selfID, dest string, rt []routingtable.Entry, lsas map[string]LSA) Result {
	if dest == selfID {
		return Result{Kind: KindLocal}
	}

	connected := make(map[string]bool, len(rt))
	for _, e := range rt {
		if e.Status == routingtable.StatusConnected {
			connected[e.NodeID] = true
		}
	}

	if connected[dest] {
		return Result{Kind: KindNextHop, NextHopID: dest}
	}

	if len(lsas) == 0 {
		return Result{Kind: KindNoRoute}
	}

	adj := buildGraph(selfID, lsas)

	// Self's own edges may only be traversed to a Connected routing-table
	// peer — the LSA graph can claim an edge to a peer we have not yet
	// health-checked, but we must never choose that as a next hop.
	filtered := make([]string, 0, len(adj[selfID]))
	for _, neighbor := range adj[selfID] {
		if connected[neighbor] {
			filtered = append(filtered, neighbor)
		}
	}
	adj[selfID] = filtered

	nextHop, ok := bfsFirstHop(selfID, dest, adj)
	if !ok {
		return Result{Kind: KindNoRoute}
	}
	return Result{Kind: KindNextHop, NextHopID: nextHop}
}

// buildGraph constructs the undirected adjacency list implied by the LSA
// snapshot. Vertices are every node named as an originator or neighbor by
// any LSA, plus self. An edge {u, v} is added if both sides confirm it, or
// if one side advertises it and the other has not yet advertised at all —
// this keeps the graph usable before the destination's own LSA has
// arrived.
func buildGraph(selfID string, lsas map[string]LSA) map[string][]string {
	adj := make(map[string][]string)
	ensure := func(id string) {
		if _, ok := adj[id]; !ok {
			adj[id] = nil
		}
	}
	ensure(selfID)
	for origin, lsa := range lsas {
		ensure(origin)
		for _, n := range lsa.Neighbors {
			ensure(n)
		}
	}

	addEdge := func(u, v string) {
		if !slices.Contains(adj[u], v) {
			adj[u] = append(adj[u], v)
		}
		if !slices.Contains(adj[v], u) {
			adj[v] = append(adj[v], u)
		}
	}

	for origin, lsa := range lsas {
		for _, n := range lsa.Neighbors {
			otherLSA, otherHasLSA := lsas[n]
			bidirectional := otherHasLSA && slices.Contains(otherLSA.Neighbors, origin)
			if bidirectional || !otherHasLSA {
				addEdge(origin, n)
			}
		}
	}

	for id := range adj {
		slices.Sort(adj[id])
	}
	return adj
}

// bfsFirstHop finds the first hop after selfID on a shortest path to dest.
// Edge weight is uniform (1), so BFS is equivalent to Dijkstra. Neighbors
// are visited in sorted order so the result is deterministic under ties.
func bfsFirstHop(selfID, dest string, adj map[string][]string) (string, bool) {
	if _, ok := adj[dest]; !ok {
		return "", false
	}

	type queued struct {
		node     string
		firstHop string
	}

	visited := map[string]bool{selfID: true}
	queue := []queued{}
	for _, n := range adj[selfID] {
		if !visited[n] {
			visited[n] = true
			queue = append(queue, queued{node: n, firstHop: n})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node == dest {
			return cur.firstHop, true
		}

		for _, n := range adj[cur.node] {
			if visited[n] {
				continue
			}
			visited[n] = true
			queue = append(queue, queued{node: n, firstHop: cur.firstHop})
		}
	}
	return "", false
}
