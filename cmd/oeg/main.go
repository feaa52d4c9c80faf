package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/oeg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/session"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
)

const readySubject = "aftm.control.ready.oeg"

func main() {
	natsURL := flag.String("nats-url", "nats://127.0.0.1:4222", "NATS server URL the supervisor started")
	account := flag.String("account", "demo-account", "broker account OEG attaches to outgoing orders")
	flag.Parse()

	nc, err := channel.Connect(*natsURL)
	if err != nil {
		log.Fatalf("connect to nats: %v", err)
	}
	defer nc.Close()

	obs, err := observability.NewProvider(&observability.SimpleObservabilityConfig{
		ServiceName: "oeg-worker",
		LogLevel:    "info",
		LogFormat:   "json",
	})
	if err != nil {
		log.Fatalf("observability provider: %v", err)
	}

	sessions := session.NewStore()
	sessions.Login(*account)

	poller, err := channel.NewSignalPoller(nc)
	if err != nil {
		log.Fatalf("signal poller: %v", err)
	}
	client := channel.NewOrderClient(nc, obs.Metrics)

	gateway := oeg.New(poller, client, sessions, obs.Logger, obs.Metrics, oeg.DefaultPollTimeout, oeg.DefaultRequestTimeout, 3)

	if err := nc.Publish(readySubject, []byte("ready")); err != nil {
		log.Fatalf("publish ready: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	gateway.Stop()
	cancel()
}
