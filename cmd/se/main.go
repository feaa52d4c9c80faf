package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/condition"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/se"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
)

const readySubject = "aftm.control.ready.se"

func main() {
	natsURL := flag.String("nats-url", "nats://127.0.0.1:4222", "NATS server URL the supervisor started")
	flag.Parse()

	nc, err := channel.Connect(*natsURL)
	if err != nil {
		log.Fatalf("connect to nats: %v", err)
	}
	defer nc.Close()

	obs, err := observability.NewProvider(&observability.SimpleObservabilityConfig{
		ServiceName: "se-worker",
		LogLevel:    "info",
		LogFormat:   "json",
	})
	if err != nil {
		log.Fatalf("observability provider: %v", err)
	}

	store := condition.NewStore()
	store.Upsert(demoCondition())

	poller, err := channel.NewTickPoller(nc)
	if err != nil {
		log.Fatalf("tick poller: %v", err)
	}
	publisher := channel.NewSignalPublisher(nc, 1024, obs.Logger, obs.Metrics)
	defer publisher.Close()

	engine := se.New(store, poller, publisher, obs.Logger, obs.Metrics, se.DefaultPollTimeout, se.DefaultRingSize)

	if err := nc.Publish(readySubject, []byte("ready")); err != nil {
		log.Fatalf("publish ready: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	engine.Stop()
	cancel()
}

// demoCondition seeds a strategy rule when no external condition store is
// wired in yet.
func demoCondition() model.Condition {
	return model.Condition{
		ID:           "demo-buy-txfg6",
		CommodityID:  "TXFG6",
		Action:       model.SideBuy,
		TargetPrice:  decimal.RequireFromString("18500"),
		TurningPoint: decimal.RequireFromString("5"),
		Quantity:     1,
		TakeProfit:   decimal.RequireFromString("30"),
		StopLoss:     decimal.RequireFromString("15"),
	}
}
