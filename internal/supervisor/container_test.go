package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/broker"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/config"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/dgw"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/mdg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/supervisor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Lifecycle.PIDDir = filepath.Join(t.TempDir(), "pids")
	cfg.Lifecycle.ReadyTimeout = 200 * time.Millisecond
	cfg.Lifecycle.ShutdownGraceMs = 500 * time.Millisecond
	// port 0 picks any free port so parallel test runs never collide on a
	// hardcoded default.
	cfg.Channel.MarketBind = "nats://127.0.0.1:0"
	return cfg
}

// No worker binaries are configured in these tests: spawnWorker treats an
// empty path as "this deployment does not run that component" and marks
// it RUNNING without execing anything, so startup/shutdown ordering for
// MDG and DGW can be exercised without built se/oeg executables.
func TestStartTradingSystemBringsUpMDGAndDGW(t *testing.T) {
	cfg := testConfig(t)
	feed := mdg.NewReplayFeed(nil, 0)
	brokerClient := dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})

	container, err := (supervisor.ApplicationBootstrapper{}).Bootstrap(cfg, feed, brokerClient, supervisor.WorkerBinaries{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	require.NoError(t, container.StartTradingSystem(context.Background(), []string{"TXFG6"}))
	t.Cleanup(func() { _ = container.StopTradingSystem(context.Background()) })

	health := container.GetSystemHealth()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, model.StatusRunning, health.Components["mdg"].Status)
	assert.Equal(t, model.StatusRunning, health.Components["dgw"].Status)
	assert.Equal(t, model.StatusRunning, health.Components["se"].Status)
	assert.Equal(t, model.StatusRunning, health.Components["oeg"].Status)
}

func TestStopTradingSystemMarksComponentsStopped(t *testing.T) {
	cfg := testConfig(t)
	feed := mdg.NewReplayFeed(nil, 0)
	brokerClient := dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})

	container, err := (supervisor.ApplicationBootstrapper{}).Bootstrap(cfg, feed, brokerClient, supervisor.WorkerBinaries{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	require.NoError(t, container.StartTradingSystem(context.Background(), []string{"TXFG6"}))
	require.NoError(t, container.StopTradingSystem(context.Background()))

	health := container.GetSystemHealth()
	assert.Equal(t, model.StatusStopped, health.Components["mdg"].Status)
	assert.Equal(t, model.StatusStopped, health.Components["dgw"].Status)
}

func TestSendOrderAndGetPositionsRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	feed := mdg.NewReplayFeed(nil, 0)
	brokerClient := dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})

	container, err := (supervisor.ApplicationBootstrapper{}).Bootstrap(cfg, feed, brokerClient, supervisor.WorkerBinaries{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	require.NoError(t, container.StartTradingSystem(context.Background(), []string{"TXFG6"}))
	t.Cleanup(func() { _ = container.StopTradingSystem(context.Background()) })

	resp := container.SendOrder(context.Background(), model.OrderRequest{
		Account: "acct-1", Symbol: "TXFG6", Side: model.SideBuy, Quantity: 1, RequestID: "req-1",
	})
	require.True(t, resp.OK)

	positions, err := container.GetPositions(context.Background(), "acct-1", "TXFG6")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(1), positions[0].Quantity)
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.MarketConnect = ""

	_, err := (supervisor.ApplicationBootstrapper{}).Bootstrap(cfg, mdg.NewReplayFeed(nil, 0), nil, supervisor.WorkerBinaries{})
	assert.Error(t, err)
}

func TestPIDDirectoryUnusedWhenNoWorkerBinariesConfigured(t *testing.T) {
	cfg := testConfig(t)
	container, err := (supervisor.ApplicationBootstrapper{}).Bootstrap(cfg, mdg.NewReplayFeed(nil, 0), nil, supervisor.WorkerBinaries{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	require.NoError(t, container.StartTradingSystem(context.Background(), []string{"TXFG6"}))
	t.Cleanup(func() { _ = container.StopTradingSystem(context.Background()) })

	entries, _ := os.ReadDir(cfg.Lifecycle.PIDDir)
	assert.Empty(t, entries, "no PID file should be written for a component with no binary path")
}
