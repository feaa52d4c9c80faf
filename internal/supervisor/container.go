// Package supervisor brings MDG, DGW, the embedded NATS transport, and the
// SE/OEG worker processes up in a defined order, tracks health, and tears
// the system down in reverse order. ServiceContainer is the explicit
// capability bundle that replaces any package-level mutable singleton;
// ApplicationBootstrapper is the only thing that constructs one.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/broker"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/condition"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/config"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/dgw"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/mdg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/session"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

const (
	componentMDG = "mdg"
	componentDGW = "dgw"
	componentSE  = "se"
	componentOEG = "oeg"

	readySubjectPrefix = "aftm.control.ready."
)

// WorkerBinaries locates the SE and OEG worker executables the Supervisor
// spawns as separate OS processes.
type WorkerBinaries struct {
	SEPath  string
	OEGPath string
}

// ServiceContainer is the capability bundle constructed once per process
// lifetime by ApplicationBootstrapper and torn down exactly once by
// Close. Nothing outside this package reaches into its fields directly;
// callers use the StartTradingSystem/StopTradingSystem/... methods.
type ServiceContainer struct {
	cfg     *config.Config
	obs     *observability.Provider
	nats    *embeddedNATS
	conn    *nats.Conn
	workers WorkerBinaries

	sessions   *session.Store
	conditions *condition.Store
	health     *healthTracker

	mdgGateway *mdg.Gateway
	dgwGateway *dgw.Gateway
	orderSrv   *channel.OrderServer

	seCmd  *exec.Cmd
	oegCmd *exec.Cmd

	mu      sync.Mutex
	started bool
}

// ApplicationBootstrapper is the single entry point that assembles a
// ServiceContainer. Replacing it is the only way to change how the system
// is wired; no package-level globals exist to patch around it.
type ApplicationBootstrapper struct{}

// Bootstrap validates cfg, starts the embedded NATS transport, and returns
// a ServiceContainer ready for StartTradingSystem. It does not itself start
// MDG/DGW/SE/OEG; that is StartTradingSystem's job. The VendorFeed and
// BrokerClient are fixed here; a nil brokerClient is replaced by a
// SimulatedBrokerClient.
func (ApplicationBootstrapper) Bootstrap(cfg *config.Config, feed mdg.VendorFeed, brokerClient dgw.BrokerClient, workers WorkerBinaries) (*ServiceContainer, error) {
	if cfg == nil {
		return nil, tradeerrors.Newf(model.ErrorKindConfig, "supervisor.Bootstrap", "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, tradeerrors.New(model.ErrorKindConfig, "supervisor.Bootstrap", err)
	}

	obsCfg := &observability.SimpleObservabilityConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    "production",
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		MetricsEnabled: false,
	}
	obs, err := observability.NewProvider(obsCfg)
	if err != nil {
		return nil, tradeerrors.New(model.ErrorKindConfig, "supervisor.Bootstrap", err)
	}

	host, port, err := hostPort(cfg.Channel.MarketBind)
	if err != nil {
		return nil, tradeerrors.New(model.ErrorKindConfig, "supervisor.Bootstrap", err)
	}

	if err := probeBindable(fmt.Sprintf("%s:%d", host, port)); err != nil {
		return nil, tradeerrors.New(model.ErrorKindLifecycle, "supervisor.Bootstrap", err)
	}

	srv, err := startEmbeddedNATS(host, port)
	if err != nil {
		return nil, tradeerrors.New(model.ErrorKindLifecycle, "supervisor.Bootstrap", err)
	}

	nc, err := channel.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, tradeerrors.New(model.ErrorKindTransport, "supervisor.Bootstrap", err)
	}

	if brokerClient == nil {
		brokerClient = dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})
	}

	container := &ServiceContainer{
		cfg:        cfg,
		obs:        obs,
		nats:       srv,
		conn:       nc,
		workers:    workers,
		sessions:   session.NewStore(),
		conditions: condition.NewStore(),
		health:     newHealthTracker(),
		dgwGateway: dgw.New(brokerClient, obs.Logger, obs.Metrics, cfg.DGW.QueueCapacity, cfg.DGW.DedupeCacheSize),
	}

	publisher := channel.NewTickPublisher(nc, cfg.Channel.TickHWM, obs.Logger, obs.Metrics)
	container.mdgGateway = mdg.New(feed, publisher, obs.Logger, obs.Metrics)

	return container, nil
}

// Conditions exposes the condition store so an external CLI/admin surface
// can add or edit Conditions SE will pick up on its next poll.
func (c *ServiceContainer) Conditions() *condition.Store { return c.conditions }

// Sessions exposes the session store so an external login use case can
// publish a new Snapshot.
func (c *ServiceContainer) Sessions() *session.Store { return c.sessions }

// StartTradingSystem brings MDG, DGW, and the SE/OEG worker processes up
// in order, waiting for each worker's readiness heartbeat before starting
// the next.
func (c *ServiceContainer) StartTradingSystem(ctx context.Context, commodityIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.health.setStatus(componentMDG, model.StatusStarting)
	go func() {
		if err := c.mdgGateway.Run(ctx, commodityIDs); err != nil {
			c.obs.Logger.Error(ctx, "market data gateway stopped", err, nil)
			c.health.setStatus(componentMDG, model.StatusError)
		}
	}()
	c.health.setStatus(componentMDG, model.StatusRunning)

	c.health.setStatus(componentDGW, model.StatusStarting)
	if err := c.dgwGateway.Authenticate(ctx); err != nil {
		c.health.setStatus(componentDGW, model.StatusError)
		return tradeerrors.New(model.ErrorKindLifecycle, "supervisor.StartTradingSystem", err)
	}
	orderSrv, err := channel.SubscribeOrders(c.conn, c.obs.Logger, c.dgwGateway.HandleOrderRequest)
	if err != nil {
		c.health.setStatus(componentDGW, model.StatusError)
		return tradeerrors.New(model.ErrorKindLifecycle, "supervisor.StartTradingSystem", err)
	}
	c.orderSrv = orderSrv
	c.health.setStatus(componentDGW, model.StatusRunning)

	if err := c.spawnWorker(componentSE, c.workers.SEPath); err != nil {
		return err
	}
	if err := c.spawnWorker(componentOEG, c.workers.OEGPath); err != nil {
		return err
	}

	c.started = true
	return nil
}

// spawnWorker execs path as a child process, writes its PID file, and
// waits for a READY heartbeat published on its control subject before
// marking it RUNNING.
func (c *ServiceContainer) spawnWorker(component, path string) error {
	c.health.setStatus(component, model.StatusStarting)

	if path == "" {
		// No worker binary configured (e.g. a unit test exercising only
		// MDG/DGW wiring): record RUNNING so health aggregation isn't
		// skewed by a component this deployment never spawns.
		c.health.setStatus(component, model.StatusRunning)
		return nil
	}

	cmd := exec.Command(path, "--nats-url", c.nats.ClientURL())
	if err := cmd.Start(); err != nil {
		c.health.setStatus(component, model.StatusError)
		return tradeerrors.New(model.ErrorKindLifecycle, "supervisor.spawnWorker", err)
	}

	if err := writePIDFile(c.cfg.Lifecycle.PIDDir, component, cmd.Process.Pid); err != nil {
		c.health.setStatus(component, model.StatusError)
		return tradeerrors.New(model.ErrorKindLifecycle, "supervisor.spawnWorker", err)
	}

	switch component {
	case componentSE:
		c.seCmd = cmd
	case componentOEG:
		c.oegCmd = cmd
	}

	if err := c.awaitReady(component); err != nil {
		c.health.setStatus(component, model.StatusError)
		return err
	}

	c.health.setStatus(component, model.StatusRunning)
	return nil
}

// awaitReady blocks for up to Lifecycle.ReadyTimeout for component's READY
// heartbeat on its out-of-band control subject.
func (c *ServiceContainer) awaitReady(component string) error {
	sub, err := c.conn.SubscribeSync(readySubjectPrefix + component)
	if err != nil {
		return tradeerrors.New(model.ErrorKindLifecycle, "supervisor.awaitReady", err)
	}
	defer sub.Unsubscribe()

	timeout := c.cfg.Lifecycle.ReadyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if _, err := sub.NextMsg(timeout); err != nil {
		return tradeerrors.Newf(model.ErrorKindLifecycle, "supervisor.awaitReady", "%s did not become ready within %s: %v", component, timeout, err)
	}
	return nil
}

// StopTradingSystem executes the reverse-order shutdown sequence:
// OEG -> SE -> DGW -> MDG. Each worker process is sent SIGTERM and killed
// if it has not exited within the shutdown grace window; DGW's handler loop
// is stopped and its broker disconnected. MDG is only marked STOPPED: its
// Run loop keeps going until the context passed to StartTradingSystem is
// canceled or its feed closes.
func (c *ServiceContainer) StopTradingSystem(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}

	grace := c.cfg.Lifecycle.ShutdownGraceMs

	c.stopWorker(componentOEG, c.oegCmd, grace)
	c.stopWorker(componentSE, c.seCmd, grace)

	if c.orderSrv != nil {
		_ = c.orderSrv.Unsubscribe()
	}
	if err := c.dgwGateway.Shutdown(ctx); err != nil {
		c.health.setStatus(componentDGW, model.StatusError)
	} else {
		c.health.setStatus(componentDGW, model.StatusStopped)
	}

	c.health.setStatus(componentMDG, model.StatusStopped)

	c.started = false
	return nil
}

func (c *ServiceContainer) stopWorker(component string, cmd *exec.Cmd, grace time.Duration) {
	c.health.setStatus(component, model.StatusStopping)
	defer func() { _ = removePIDFile(c.cfg.Lifecycle.PIDDir, component) }()

	if cmd == nil || cmd.Process == nil {
		c.health.setStatus(component, model.StatusStopped)
		return
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	_ = cmd.Process.Signal(processTermSignal())

	select {
	case <-done:
	case <-time.After(grace):
		_ = cmd.Process.Kill()
		<-done
	}
	c.health.setStatus(component, model.StatusStopped)
}

// GetSystemHealth returns the aggregate health structure across all
// components.
func (c *ServiceContainer) GetSystemHealth() model.SystemHealth {
	return c.health.snapshot()
}

// SendOrder is the CLI-facing send_order entry point: it goes straight to
// DGW's handler rather than round-tripping through OEG, for
// manual/administrative order placement outside the signal pipeline.
func (c *ServiceContainer) SendOrder(ctx context.Context, req model.OrderRequest) model.OrderResponse {
	return c.dgwGateway.HandleOrderRequest(ctx, req)
}

// GetPositions is the CLI-facing get_positions entry point.
func (c *ServiceContainer) GetPositions(ctx context.Context, account, symbol string) ([]model.Position, error) {
	return c.dgwGateway.GetPositions(ctx, account, symbol)
}

// Close releases the embedded NATS transport and observability exporters.
// Call after StopTradingSystem during process exit.
func (c *ServiceContainer) Close(ctx context.Context) error {
	c.conn.Close()
	c.nats.Shutdown()
	return c.obs.Stop(ctx)
}
