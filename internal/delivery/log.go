// Package delivery keeps a bounded, in-memory record of messages this node
// has terminally delivered when acting as the final hop for a message.
// It exists purely for operational diagnosis — nothing in the
// mesh's control plane reads it back — and is backed by a storage.Store
// the same way a stateful data partition would be.
package delivery

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/meshnode/internal/storage"
)

// Record is one locally delivered message, as retained for diagnosis.
type Record struct {
	From        string    `json:"from"`
	Content     string    `json:"content"`
	Route       []string  `json:"route"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Log is a fixed-capacity ring of the most recent delivery Records,
// oldest evicted first.
type Log struct {
	store    storage.Store
	capacity int

	mu   sync.Mutex
	next uint64 // monotonically increasing key counter
	keys []string
}

// New returns a Log backed by store, retaining at most capacity records.
func New(store storage.Store, capacity int) *Log {
	return &Log{store: store, capacity: capacity}
}

// Record appends a delivered message, evicting the oldest entry if the log
// is at capacity.
func (l *Log) Record(rec Record) {
	key := l.nextKey()

	payload, err := json.Marshal(rec)
	if err != nil {
		return // Record is always marshalable; defensive only.
	}
	_ = l.store.Put(key, payload)

	l.mu.Lock()
	l.keys = append(l.keys, key)
	var evicted string
	if l.capacity > 0 && len(l.keys) > l.capacity {
		evicted, l.keys = l.keys[0], l.keys[1:]
	}
	l.mu.Unlock()

	if evicted != "" {
		_ = l.store.Delete(evicted)
	}
}

// List returns the retained records, oldest first.
func (l *Log) List() []Record {
	l.mu.Lock()
	keys := make([]string, len(l.keys))
	copy(keys, l.keys)
	l.mu.Unlock()

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		raw, err := l.store.Get(k)
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (l *Log) nextKey() string {
	n := atomic.AddUint64(&l.next, 1)
	return "delivery:" + strconv.FormatUint(n, 10)
}
