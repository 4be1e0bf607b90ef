// Package server implements the HTTPS Surface: the mTLS-terminated
// request dispatcher exposing every mesh endpoint, plus a
// Prometheus /metrics endpoint and a diagnostic /peer/deliveries
// endpoint, both kept purely for operational diagnosis.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/meshnode/internal/delivery"
	"github.com/dreamware/meshnode/internal/forwarding"
	"github.com/dreamware/meshnode/internal/metrics"
	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/topology"
	"github.com/dreamware/meshnode/internal/trust"
)

// Version is reported at GET /peer/info.
const Version = "0.1.0"

// Server holds every component the HTTPS Surface dispatches to. It
// owns no state of its own beyond the listen address and start time.
type Server struct {
	SelfID        string
	ListenAddress string

	RT      *routingtable.Table
	LSADB   *topology.Database
	Forward *forwarding.Engine
	Log     *delivery.Log
	Metrics *metrics.Registry

	Trust  *trust.Store
	Client *http.Client
	Logger *zap.SugaredLogger

	startedAt time.Time
	httpSrv   *http.Server
}

// New constructs a Server and its underlying http.Server, but does not
// start listening.
func New(s *Server) *Server {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/peer/info", s.handlePeerInfo)
	mux.HandleFunc("/peers", s.handlePeers)
	mux.HandleFunc("/peer/deliveries", s.handleDeliveries)
	mux.HandleFunc("/message/send", s.handleMessageSend)
	mux.HandleFunc("/message/receive", s.handleMessageReceive)
	mux.HandleFunc("/topology/lsa", s.handleTopologyLSA)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              s.ListenAddress,
		Handler:           withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.Trust != nil {
		s.httpSrv.TLSConfig = s.Trust.ServerTLSConfig()
	}
	return s
}

// ListenAndServeTLS starts serving over mTLS. cert/key paths are empty
// because the Trust Store has already loaded the key material into
// TLSConfig.
func (s *Server) ListenAndServeTLS() error {
	return s.httpSrv.ListenAndServeTLS("", "")
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type healthResponse struct {
	Status        string  `json:"status"`
	NodeID        string  `json:"node_id"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		NodeID:        s.SelfID,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

type peerInfoResponse struct {
	NodeID     string   `json:"node_id"`
	ListenAddr string   `json:"listen_addr"`
	Peers      []string `json:"peers"`
	Version    string   `json:"version"`
}

func (s *Server) handlePeerInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := s.RT.List()
	peers := make([]string, 0, len(entries))
	for _, e := range entries {
		peers = append(peers, e.NodeID)
	}
	writeJSON(w, http.StatusOK, peerInfoResponse{
		NodeID:     s.SelfID,
		ListenAddr: s.ListenAddress,
		Peers:      peers,
		Version:    Version,
	})
}

type peerView struct {
	NodeID   string  `json:"node_id"`
	Address  string  `json:"address"`
	Status   string  `json:"status"`
	LastSeen *string `json:"last_seen,omitempty"`
}

type peersResponse struct {
	Peers []peerView `json:"peers"`
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := s.RT.List()
	out := make([]peerView, 0, len(entries))
	for _, e := range entries {
		v := peerView{NodeID: e.NodeID, Address: e.Address, Status: statusString(e.Status)}
		if !e.LastSeen.IsZero() {
			ts := e.LastSeen.UTC().Format(time.RFC3339)
			v.LastSeen = &ts
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, peersResponse{Peers: out})
}

func statusString(status routingtable.Status) string {
	switch status {
	case routingtable.StatusConnected:
		return "connected"
	case routingtable.StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.Log == nil {
		writeJSON(w, http.StatusOK, map[string]any{"deliveries": []delivery.Record{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": s.Log.List()})
}

type sendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	resp := s.Forward.Originate(r.Context(), req.To, req.Content)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessageReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var msg forwarding.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.To == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	resp := s.Forward.Relay(r.Context(), msg)
	writeJSON(w, http.StatusOK, resp)
}

type lsaWireRequest struct {
	NodeID    string    `json:"node_id"`
	Neighbors []string  `json:"neighbors"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

type lsaResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleTopologyLSA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req lsaWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	lsa := topology.LSA{
		NodeID:    req.NodeID,
		Neighbors: req.Neighbors,
		Sequence:  req.Sequence,
		Timestamp: req.Timestamp,
	}
	result := s.LSADB.Accept(lsa)
	if s.Metrics != nil {
		s.Metrics.ObserveLSA(result)
	}

	if result == topology.Ignored {
		writeJSON(w, http.StatusOK, lsaResponse{Status: "ignored", Message: "stale or duplicate sequence"})
		return
	}

	writeJSON(w, http.StatusOK, lsaResponse{Status: "accepted", Message: "stored"})

	if lsa.NodeID != s.SelfID {
		go s.floodLSA(lsa, immediatePeerID(r))
	}
}

// immediatePeerID returns the node_id of the peer that sent this request,
// read from the common name of the client certificate presented during
// the mTLS handshake. Past the first hop this is not the same node as an
// LSA's originator: a flooded LSA is relayed by every intermediate peer,
// each of which presents its own client certificate on the connection it
// relays over.
func immediatePeerID(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	return r.TLS.PeerCertificates[0].Subject.CommonName
}

// floodLSA re-broadcasts a freshly accepted LSA to every connected peer
// except senderID — the peer this copy of the LSA was just received
// from, not necessarily its originator.
func (s *Server) floodLSA(lsa topology.LSA, senderID string) {
	for _, peerID := range s.RT.ConnectedPeers() {
		if peerID == senderID {
			continue
		}
		entry, ok := s.RT.Get(peerID)
		if !ok {
			continue
		}
		s.postLSA(entry.Address, lsa)
	}
}

func (s *Server) postLSA(address string, lsa topology.LSA) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(lsa)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+address+"/topology/lsa", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warnw("LSA flood failed", "peer", address, "error", err)
		}
		return
	}
	defer resp.Body.Close()
}
