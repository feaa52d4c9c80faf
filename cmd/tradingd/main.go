package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/config"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/mdg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional; defaults are used otherwise)")
	sePath := flag.String("se-bin", "", "path to the se worker binary")
	oegPath := flag.String("oeg-bin", "", "path to the oeg worker binary")
	commodities := flag.String("commodities", "TXFG6", "comma-separated commodity IDs MDG subscribes to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	feed := mdg.NewReplayFeed(demoTicks(), 200*time.Millisecond)

	bootstrapper := supervisor.ApplicationBootstrapper{}
	container, err := bootstrapper.Bootstrap(cfg, feed, nil, supervisor.WorkerBinaries{
		SEPath:  *sePath,
		OEGPath: *oegPath,
	})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	ctx := context.Background()
	if err := container.StartTradingSystem(ctx, splitCSV(*commodities)); err != nil {
		log.Fatalf("start trading system: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := container.StopTradingSystem(shutdownCtx); err != nil {
		log.Printf("stop trading system: %v", err)
	}
	if err := container.Close(shutdownCtx); err != nil {
		log.Printf("close container: %v", err)
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// demoTicks seeds the replay feed used when no real vendor adapter is
// wired in yet; it is only exercised by the default run path, not by
// anything under internal/.
func demoTicks() []mdg.RawTick {
	return []mdg.RawTick{
		{CommodityID: "TXFG6", MatchPrice: mustDecimal("18500"), VendorTime: time.Now()},
		{CommodityID: "TXFG6", MatchPrice: mustDecimal("18505"), VendorTime: time.Now()},
		{CommodityID: "TXFG6", MatchPrice: mustDecimal("18510"), VendorTime: time.Now()},
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
