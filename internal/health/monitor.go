// Package health implements the Health Monitor: a periodic prober that
// marks peers Connected or Disconnected in the Routing Table based on
// whether a GET of their /health endpoint succeeds.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/meshnode/internal/routingtable"
)

// DefaultInterval is how often every peer is probed.
const DefaultInterval = 15 * time.Second

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Monitor periodically probes every known peer's /health endpoint and
// reflects the result into a routingtable.Table.
type Monitor struct {
	RT       *routingtable.Table
	Client   *http.Client
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.SugaredLogger

	// OnStatusChange, if set, is invoked after every probe completes —
	// used to drive a peer-connectivity metric.
	OnStatusChange func(entries []routingtable.Entry)

	// checkFunc is overridable in tests so a probe can be simulated
	// without a real listener.
	checkFunc func(ctx context.Context, address string) error

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewMonitor returns a Monitor with the given defaults; zero-value
// Interval/Timeout/Client fall back to package defaults at Run time.
func NewMonitor(rt *routingtable.Table, client *http.Client) *Monitor {
	return &Monitor{RT: rt, Client: client}
}

// SetCheckFunc overrides the health probe, for tests.
func (m *Monitor) SetCheckFunc(fn func(ctx context.Context, address string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFunc = fn
}

// Run probes all peers immediately, then on every tick of Interval,
// until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkAll(ctx)

	for {
		select {
		case <-ticker.C:
			m.checkAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until a Run goroutine started on this Monitor has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) checkAll(ctx context.Context) {
	for _, entry := range m.RT.List() {
		entry := entry
		go m.checkOne(ctx, entry)
	}
}

func (m *Monitor) checkOne(ctx context.Context, entry routingtable.Entry) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.probe(ctx, entry.Address)
	now := time.Now()

	prev, _ := m.RT.Get(entry.NodeID)

	if err != nil {
		m.RT.SetStatus(entry.NodeID, routingtable.StatusDisconnected, now)
		if m.Logger != nil && prev.Status != routingtable.StatusDisconnected {
			m.Logger.Infow("peer marked disconnected", "peer", entry.NodeID, "error", err)
		}
	} else {
		m.RT.SetStatus(entry.NodeID, routingtable.StatusConnected, now)
		if m.Logger != nil && prev.Status != routingtable.StatusConnected {
			m.Logger.Infow("peer marked connected", "peer", entry.NodeID)
		}
	}

	if m.OnStatusChange != nil {
		m.OnStatusChange(m.RT.List())
	}
}

func (m *Monitor) probe(ctx context.Context, address string) error {
	m.mu.Lock()
	fn := m.checkFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, address)
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := fmt.Sprintf("https://%s/health", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe to %s: status %d", address, resp.StatusCode)
	}
	return nil
}
