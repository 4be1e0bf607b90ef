// Package metrics registers the Prometheus collectors exposed at
// GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dreamware/meshnode/internal/forwarding"
	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/topology"
)

// Registry bundles every collector this node exposes and the callbacks
// that feed them.
type Registry struct {
	LSAAccepted      prometheus.Counter
	LSAIgnored       prometheus.Counter
	ForwardOutcomes  *prometheus.CounterVec
	PeerConnected    *prometheus.GaugeVec
}

// NewRegistry constructs and registers all collectors against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		LSAAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "lsa",
			Name:      "accepted_total",
			Help:      "Link-state advertisements accepted into the topology database.",
		}),
		LSAIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "lsa",
			Name:      "ignored_total",
			Help:      "Link-state advertisements ignored as stale or duplicate.",
		}),
		ForwardOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshnode",
			Subsystem: "forwarding",
			Name:      "outcomes_total",
			Help:      "Forwarding outcomes by status.",
		}, []string{"status"}),
		PeerConnected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meshnode",
			Subsystem: "peer",
			Name:      "connected",
			Help:      "1 if the peer is currently Connected, 0 otherwise.",
		}, []string{"peer"}),
	}
}

// ObserveLSA records the outcome of a single Database.Accept call.
func (r *Registry) ObserveLSA(result topology.AcceptResult) {
	switch result {
	case topology.Accepted:
		r.LSAAccepted.Inc()
	case topology.Ignored:
		r.LSAIgnored.Inc()
	}
}

// ObserveOutcome records a single forwarding.Outcome.
func (r *Registry) ObserveOutcome(outcome forwarding.Outcome) {
	r.ForwardOutcomes.WithLabelValues(string(outcome)).Inc()
}

// ObservePeers snapshots the current routing table into the peer gauge.
func (r *Registry) ObservePeers(entries []routingtable.Entry) {
	for _, e := range entries {
		v := 0.0
		if e.Status == routingtable.StatusConnected {
			v = 1.0
		}
		r.PeerConnected.WithLabelValues(e.NodeID).Set(v)
	}
}
