package supervisor

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// hostPort extracts the host and port the embedded NATS server should bind
// to from a nats://host:port bind address, so Bootstrap has one source of
// truth for transport addressing instead of a separate hardcoded constant.
func hostPort(bindAddr string) (string, int, error) {
	u, err := url.Parse(bindAddr)
	if err != nil {
		return "", 0, fmt.Errorf("supervisor: parse bind address %q: %w", bindAddr, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, fmt.Errorf("supervisor: bind address %q has no numeric port: %w", bindAddr, err)
	}
	return u.Hostname(), port, nil
}

// probeBindable checks that addr's port is free by binding and releasing it
// immediately: this verifies the ports channels T, S, and O need are
// free before anything tries to bind them. The embedded NATS server serves all three logical channels
// on one real listener, so a single probe covers it.
func probeBindable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("supervisor: port %s not bindable: %w", addr, err)
	}
	return ln.Close()
}

// embeddedNATS wraps the in-process NATS server that backs channels T, S,
// and O: the Supervisor starts it as part of bringing Main up, rather than
// depending on an externally managed broker.
type embeddedNATS struct {
	srv *natsserver.Server
}

// startEmbeddedNATS starts the broker on host:port. port 0 picks any free
// port, matching net.Listen's own convention, rather than nats-server's
// less familiar -1.
func startEmbeddedNATS(host string, port int) (*embeddedNATS, error) {
	if port == 0 {
		port = -1
	}
	opts := &natsserver.Options{Host: host, Port: port}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("supervisor: start embedded nats: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("supervisor: embedded nats did not become ready")
	}
	return &embeddedNATS{srv: srv}, nil
}

func (e *embeddedNATS) ClientURL() string {
	return e.srv.ClientURL()
}

func (e *embeddedNATS) Shutdown() {
	e.srv.Shutdown()
}
