package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/config/env"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/sim"
)

func main() {
	var (
		cfgPath    string
		rounds     int
		workers    int
		wager      string
		seed       string
		buy        bool
		confidence float64
		quiet      bool
	)
	flag.StringVar(&cfgPath, "config", env.GameConfigPath(), "game config yaml")
	flag.IntVar(&rounds, "rounds", 1000000, "paid rounds, bonus chains included")
	flag.IntVar(&workers, "worker", runtime.NumCPU(), "number of workers")
	flag.StringVar(&wager, "wager", "1.00", "wager per round")
	flag.StringVar(&seed, "seed", "", "server seed, random if empty")
	flag.BoolVar(&buy, "buy", false, "every round buys the bonus")
	flag.Float64Var(&confidence, "confidence", 0.95, "confidence level for intervals")
	flag.BoolVar(&quiet, "q", false, "hide progress bar")
	flag.Parse()

	cfg, err := env.NewGameConfigFromYAML(cfgPath)
	if err != nil {
		log.Fatalf("failed to load game config: %v", err)
	}
	w, err := decimal.NewFromString(wager)
	if err != nil {
		log.Fatalf("bad wager %q: %v", wager, err)
	}
	if seed == "" {
		if seed, err = rng.NewServerSeed(); err != nil {
			log.Fatalf("failed to generate seed: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opt := sim.Options{
		Rounds:        rounds,
		Workers:       workers,
		Wager:         w,
		Seed:          seed,
		BuyBonus:      buy,
		BuyBonusCostX: cfg.BuyBonusCostX(),
		Confidence:    confidence,
		Progress:      os.Stderr,
	}
	if quiet {
		opt.Progress = nil
	}

	report, err := sim.Run(ctx, cfg.Engine(), opt)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	log.Printf("server seed %s", seed)
	report.Write(os.Stdout)
}
