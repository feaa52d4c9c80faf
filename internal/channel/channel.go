// Package channel implements the three inter-process wire channels of
// channels T, S, and O on top of NATS: channel T (tick PUB/SUB, MDG -> SE), channel S
// (signal PUSH/PULL, SE -> OEG), and channel O (order REQ/REP, OEG <-> DGW).
// These were originally raw ZeroMQ sockets bound to tcp://*:PORT; this
// module re-architects them onto an embedded NATS server and nats.go
// client so the same PUB/SUB, PUSH/PULL, and REQ/REP semantics are
// reachable without a ZeroMQ binding anywhere in the dependency graph.
package channel

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectTicks is the channel T subject MDG publishes TickEvents on.
	SubjectTicks = "market.ticks"
	// SubjectSignals is the channel S subject SE pushes TradingSignals on.
	SubjectSignals = "trading.signals"
	// SubjectOrders is the channel O subject OEG sends OrderRequests on and
	// DGW replies to.
	SubjectOrders = "broker.orders"
	// SignalQueueGroup makes OEG workers compete for signals (PULL
	// semantics: each signal is delivered to exactly one worker).
	SignalQueueGroup = "oeg-workers"
)

// Connect dials a NATS server at url. Once connected, a dropped connection
// is retried indefinitely every 500ms; the initial dial itself is not
// retried, so url must already be accepting connections (the Supervisor
// waits for its embedded server to be ready before dialing).
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(5*time.Second),
		nats.Name("aftm"),
	)
	if err != nil {
		return nil, fmt.Errorf("channel: connect %s: %w", url, err)
	}
	return nc, nil
}
