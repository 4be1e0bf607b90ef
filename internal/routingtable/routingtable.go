// Package routingtable holds this node's view of every peer named in its
// configuration: address, reachability, and last-seen time. The key set is
// fixed at construction from the static peer list and never grows or
// shrinks afterward; only Status and LastSeen ever mutate.
package routingtable

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Status is the reachability of a peer as last observed by the Health
// Monitor.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Entry is one peer's routing-table record.
type Entry struct {
	NodeID   string
	Address  string
	Status   Status
	LastSeen time.Time // zero value means never seen
}

// Table is the thread-safe routing table: one entry per configured peer.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New builds a table seeded with one Unknown entry per peer in peers,
// keyed by node ID and address as supplied.
func New(peers map[string]string) *Table {
	entries := make(map[string]*Entry, len(peers))
	for nodeID, addr := range peers {
		entries[nodeID] = &Entry{
			NodeID:  nodeID,
			Address: addr,
			Status:  StatusUnknown,
		}
	}
	return &Table{entries: entries}
}

// Get returns a copy of the entry for nodeID, and whether it exists.
func (t *Table) Get(nodeID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[nodeID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns a snapshot of all entries, sorted by node ID for
// deterministic output.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.NodeID < b.NodeID:
			return -1
		case a.NodeID > b.NodeID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// SetStatus updates the status of an existing entry. If the new status is
// Connected, LastSeen is bumped to now; otherwise LastSeen is untouched.
// A nodeID absent from the table (never configured as a peer) is a no-op —
// the table never grows post-initialization.
func (t *Table) SetStatus(nodeID string, status Status, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[nodeID]
	if !ok {
		return
	}
	e.Status = status
	if status == StatusConnected {
		e.LastSeen = now
	}
}

// ConnectedPeers returns the node IDs currently marked Connected.
func (t *Table) ConnectedPeers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for id, e := range t.entries {
		if e.Status == StatusConnected {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
