package forwarding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/meshnode/internal/delivery"
	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/storage"
	"github.com/dreamware/meshnode/internal/topology"
)

func newEngine(selfID string, rt *routingtable.Table, db *topology.Database) *Engine {
	return &Engine{
		SelfID: selfID,
		RT:     rt,
		LSADB:  db,
		Client: http.DefaultClient,
		Log:    delivery.New(storage.NewMemoryStore(), 100),
	}
}

func TestOriginateSelfAddressedIsDelivered(t *testing.T) {
	rt := routingtable.New(nil)
	db := topology.NewDatabase()
	e := newEngine("gateway-a", rt, db)

	resp := e.Originate(context.Background(), "gateway-a", "hello")
	assert.Equal(t, Delivered, resp.Status)
	assert.Equal(t, []string{"gateway-a"}, resp.Route)
	assert.Len(t, e.Log.List(), 1)
}

func TestOriginateNoRouteWhenDisconnected(t *testing.T) {
	rt := routingtable.New(map[string]string{"gateway-b": "b:1"})
	rt.SetStatus("gateway-b", routingtable.StatusDisconnected, time.Now())
	db := topology.NewDatabase()
	e := newEngine("gateway-a", rt, db)

	resp := e.Originate(context.Background(), "gateway-b", "hi")
	assert.Equal(t, NoRoute, resp.Status)
}

func TestRelayLoopDetected(t *testing.T) {
	rt := routingtable.New(nil)
	db := topology.NewDatabase()
	e := newEngine("gateway-a", rt, db)

	resp := e.Relay(context.Background(), Message{From: "gateway-b", To: "gateway-x", Content: "y", Route: []string{"gateway-a", "gateway-b"}})
	assert.Equal(t, LoopDetected, resp.Status)
	assert.Equal(t, []string{"gateway-a", "gateway-b", "gateway-a"}, resp.Route)
}

func TestRelayDeliversWhenSelfIsDestination(t *testing.T) {
	rt := routingtable.New(nil)
	db := topology.NewDatabase()
	e := newEngine("gateway-b", rt, db)

	resp := e.Relay(context.Background(), Message{From: "gateway-a", To: "gateway-b", Content: "hi", Route: []string{"gateway-a"}})
	assert.Equal(t, Delivered, resp.Status)
	assert.Equal(t, []string{"gateway-a", "gateway-b"}, resp.Route)
}

func TestOriginateDirectDeliveryOverTLS(t *testing.T) {
	var received Message
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		resp := Response{Status: Delivered, Route: append(append([]string{}, received.Route...), "gateway-b")}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	rt := routingtable.New(map[string]string{"gateway-b": addr})
	rt.SetStatus("gateway-b", routingtable.StatusConnected, time.Now())
	db := topology.NewDatabase()

	e := newEngine("gateway-a", rt, db)
	e.Client = srv.Client()

	resp := e.Originate(context.Background(), "gateway-b", "hi")
	assert.Equal(t, Delivered, resp.Status)
	assert.Equal(t, []string{"gateway-a", "gateway-b"}, resp.Route)
	assert.Equal(t, "gateway-a", received.From)
}

func TestOriginateFailedWhenNextHopUnreachable(t *testing.T) {
	rt := routingtable.New(map[string]string{"gateway-b": "127.0.0.1:1"})
	rt.SetStatus("gateway-b", routingtable.StatusConnected, time.Now())
	db := topology.NewDatabase()

	e := newEngine("gateway-a", rt, db)
	e.Timeout = 500 * time.Millisecond

	resp := e.Originate(context.Background(), "gateway-b", "hi")
	assert.Equal(t, Failed, resp.Status)
}

func TestOnOutcomeCallback(t *testing.T) {
	rt := routingtable.New(nil)
	db := topology.NewDatabase()
	e := newEngine("gateway-a", rt, db)

	var got Outcome
	e.OnOutcome = func(o Outcome) { got = o }

	e.Originate(context.Background(), "gateway-a", "hi")
	assert.Equal(t, Delivered, got)
}
