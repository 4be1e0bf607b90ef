// Package broadcaster implements the LSA Broadcaster: on a periodic tick
// it builds this node's next link-state advertisement and floods it to
// every currently Connected peer.
package broadcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/topology"
)

// DefaultInterval is how often this node advertises its own LSA.
const DefaultInterval = 30 * time.Second

// DefaultTimeout bounds a single outbound advertisement POST.
const DefaultTimeout = 5 * time.Second

// Broadcaster owns the periodic self-advertisement loop.
type Broadcaster struct {
	SelfID   string
	RT       *routingtable.Table
	LSADB    *topology.Database
	Client   *http.Client
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.SugaredLogger

	wg sync.WaitGroup
}

// New returns a Broadcaster advertising selfID's LSAs over rt using db.
func New(selfID string, rt *routingtable.Table, db *topology.Database, client *http.Client) *Broadcaster {
	return &Broadcaster{SelfID: selfID, RT: rt, LSADB: db, Client: client}
}

// Run advertises immediately, then on every tick of Interval, until ctx
// is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	interval := b.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.advertiseOnce(ctx)

	for {
		select {
		case <-ticker.C:
			b.advertiseOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until a Run goroutine started on this Broadcaster has
// returned.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

func (b *Broadcaster) advertiseOnce(ctx context.Context) {
	peers := b.RT.ConnectedPeers()
	lsa := b.LSADB.OwnNextLSA(b.SelfID, peers, time.Now())

	for _, peerID := range peers {
		entry, ok := b.RT.Get(peerID)
		if !ok {
			continue
		}
		if err := b.sendLSA(ctx, entry.Address, lsa); err != nil && b.Logger != nil {
			b.Logger.Warnw("LSA broadcast to peer failed", "peer", peerID, "error", err)
		}
	}
}

func (b *Broadcaster) sendLSA(ctx context.Context, address string, lsa topology.LSA) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(lsa)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://%s/topology/lsa", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("LSA post to %s: status %d", address, resp.StatusCode)
	}
	return nil
}
