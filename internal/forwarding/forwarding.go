// Package forwarding implements the multi-hop message forwarding state
// machine: originate a message locally, relay one received from a peer,
// detect loops, and perform the single synchronous mTLS hop to the next
// node on the path.
package forwarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/meshnode/internal/delivery"
	"github.com/dreamware/meshnode/internal/routingtable"
	"github.com/dreamware/meshnode/internal/topology"
)

// Outcome is the closed set of terminal results a forward can produce,
// with a deterministic mapping to the wire "status" string.
type Outcome string

const (
	Delivered    Outcome = "delivered"
	NoRoute      Outcome = "no_route"
	Failed       Outcome = "failed"
	LoopDetected Outcome = "loop_detected"
)

// Message is a message in flight, extended with the route traversed so
// far.
type Message struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Content string   `json:"content"`
	Route   []string `json:"route"`
}

// Response is what every forwarding entry point returns, and what the
// HTTPS Surface serializes back to the caller.
type Response struct {
	Status Outcome  `json:"status"`
	Route  []string `json:"route"`
}

// DefaultTimeout bounds a single outbound forwarding hop.
const DefaultTimeout = 8 * time.Second

// Engine is the Forwarding Engine for one node.
type Engine struct {
	SelfID  string
	RT      *routingtable.Table
	LSADB   *topology.Database
	Client  *http.Client
	Log     *delivery.Log
	Logger  *zap.SugaredLogger
	Timeout time.Duration

	// OnOutcome, if set, is invoked with the terminal outcome of every
	// forward/relay on this node — used to drive metrics.
	OnOutcome func(Outcome)
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// Originate constructs a new message from this node and drives it through
// forward. The HTTPS response to the client is whatever forward returns.
func (e *Engine) Originate(ctx context.Context, to, content string) Response {
	msg := Message{From: e.SelfID, To: to, Content: content, Route: []string{e.SelfID}}
	return e.forward(ctx, msg)
}

// Relay handles a message received from a peer via /message/receive. If
// this node is already in the route, the message is looped and dropped
// without forwarding. Otherwise self is appended and the message is
// driven through forward (or delivered, if this node is the destination).
func (e *Engine) Relay(ctx context.Context, msg Message) Response {
	if slices.Contains(msg.Route, e.SelfID) {
		route := append(append([]string{}, msg.Route...), e.SelfID)
		return e.terminal(LoopDetected, route)
	}

	msg.Route = append(append([]string{}, msg.Route...), e.SelfID)

	if msg.To == e.SelfID {
		e.deliverLocally(msg)
		return e.terminal(Delivered, msg.Route)
	}

	return e.forward(ctx, msg)
}

// forward consults the Path Engine and either delivers locally, drops for
// no-route, or performs the single outbound mTLS hop to the next node on
// the path. Loop detection happens in Relay, not here.
func (e *Engine) forward(ctx context.Context, msg Message) Response {
	result := topology.NextHop(e.SelfID, msg.To, e.RT.List(), e.LSADB.Snapshot())

	switch result.Kind {
	case topology.KindLocal:
		e.deliverLocally(msg)
		return e.terminal(Delivered, msg.Route)

	case topology.KindNoRoute:
		return e.terminal(NoRoute, msg.Route)

	case topology.KindNextHop:
		entry, ok := e.RT.Get(result.NextHopID)
		if !ok {
			return e.terminal(Failed, msg.Route)
		}
		return e.postToNextHop(ctx, entry.Address, msg)
	}

	return e.terminal(Failed, msg.Route)
}

// postToNextHop performs the outbound mTLS POST to hop's /message/receive.
// On any failure (connection, TLS, timeout, non-2xx, unparsable body) the
// hop is reported Failed. On success, the downstream response is returned
// with this node prepended to its route if not already present — the
// relay that produced that response is responsible for extending the
// route itself; this only guards against a malformed/short downstream
// route.
func (e *Engine) postToNextHop(ctx context.Context, address string, msg Message) Response {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return e.terminal(Failed, msg.Route)
	}

	url := fmt.Sprintf("https://%s/message/receive", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return e.terminal(Failed, msg.Route)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warnw("forwarding hop failed", "next_hop", address, "error", err)
		}
		return e.terminal(Failed, msg.Route)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if e.Logger != nil {
			e.Logger.Warnw("forwarding hop returned non-2xx", "next_hop", address, "status", resp.StatusCode)
		}
		return e.terminal(Failed, msg.Route)
	}

	var downstream Response
	if err := json.NewDecoder(resp.Body).Decode(&downstream); err != nil {
		return e.terminal(Failed, msg.Route)
	}

	if !slices.Contains(downstream.Route, e.SelfID) {
		downstream.Route = append([]string{e.SelfID}, downstream.Route...)
	}
	e.notify(downstream.Status)
	return downstream
}

func (e *Engine) deliverLocally(msg Message) {
	if e.Log != nil {
		e.Log.Record(delivery.Record{
			From:        msg.From,
			Content:     msg.Content,
			Route:       append([]string{}, msg.Route...),
			DeliveredAt: time.Now(),
		})
	}
	if e.Logger != nil {
		e.Logger.Infow("message delivered locally", "from", msg.From, "route", msg.Route)
	}
}

func (e *Engine) terminal(outcome Outcome, route []string) Response {
	e.notify(outcome)
	return Response{Status: outcome, Route: route}
}

func (e *Engine) notify(outcome Outcome) {
	if e.OnOutcome != nil {
		e.OnOutcome(outcome)
	}
}
