// Command meshnode runs one node of the gateway mesh overlay: it loads a
// node's configuration and certificates, wires the routing table, LSA
// database, forwarding engine, health monitor, and LSA broadcaster
// together, and serves the mTLS HTTPS surface until a shutdown signal
// arrives.
//
// Usage:
//
//	meshnode <config-file>
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreamware/meshnode/internal/broadcaster"
	"github.com/dreamware/meshnode/internal/delivery"
	"github.com/dreamware/meshnode/internal/forwarding"
	"github.com/dreamware/meshnode/internal/health"
	"github.com/dreamware/meshnode/internal/meshconfig"
	"github.com/dreamware/meshnode/internal/metrics"
	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/server"
	"github.com/dreamware/meshnode/internal/storage"
	"github.com/dreamware/meshnode/internal/topology"
	"github.com/dreamware/meshnode/internal/trust"
)

// deliveryLogCapacity bounds the diagnostic delivery log kept per node.
const deliveryLogCapacity = 256

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if len(os.Args) != 2 {
		sugar.Fatalf("usage: %s <config-file>", os.Args[0])
	}

	cfg, err := meshconfig.Load(os.Args[1])
	if err != nil {
		sugar.Fatalw("failed to load configuration", "error", err)
	}

	trustStore, err := trust.Load(cfg.CertPath, cfg.KeyPath, cfg.CAPath)
	if err != nil {
		sugar.Fatalw("failed to load trust material", "error", err)
	}

	peerAddrs := make(map[string]string, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peerAddrs[p.NodeID] = p.Address
	}
	rt := routingtable.New(peerAddrs)
	lsaDB := topology.NewDatabase()
	deliveryLog := delivery.New(storage.NewMemoryStore(), deliveryLogCapacity)

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: trustStore.ClientTLSConfig()},
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	fwd := &forwarding.Engine{
		SelfID:    cfg.NodeID,
		RT:        rt,
		LSADB:     lsaDB,
		Client:    client,
		Log:       deliveryLog,
		Logger:    sugar,
		OnOutcome: reg.ObserveOutcome,
	}

	monitor := health.NewMonitor(rt, client)
	monitor.Logger = sugar
	monitor.OnStatusChange = reg.ObservePeers

	bc := broadcaster.New(cfg.NodeID, rt, lsaDB, client)
	bc.Logger = sugar

	srv := server.New(&server.Server{
		SelfID:        cfg.NodeID,
		ListenAddress: cfg.ListenAddress,
		RT:            rt,
		LSADB:         lsaDB,
		Forward:       fwd,
		Log:           deliveryLog,
		Metrics:       reg,
		Trust:         trustStore,
		Client:        client,
		Logger:        sugar,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Run(ctx)
	go bc.Run(ctx)

	go func() {
		sugar.Infow("meshnode listening", "node_id", cfg.NodeID, "address", cfg.ListenAddress)
		if err := srv.ListenAndServeTLS(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("listen failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sugar.Info("shutting down")
	cancel()
	monitor.Wait()
	bc.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("server shutdown error", "error", err)
	}
	sugar.Info("meshnode stopped")
}
