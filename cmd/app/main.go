package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"GranStocks/internal/di"
	"GranStocks/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	daily := flag.Bool("daily", false, "run the daily job once and exit")
	date := flag.String("date", "", "trading date (YYYY-MM-DD) for -daily; empty uses each symbol's latest bar")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s history=%s cache=%s kafka=%t", cfg.Environment, cfg.History.Backend, cfg.Cache.Durable, cfg.Kafka.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *daily {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		rep, err := app.RunDaily(ctx, *date)
		if err != nil {
			log.Printf("daily run failed: %v", err)
			os.Exit(1)
		}
		if rep.Failed > 0 {
			os.Exit(2)
		}
		return
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
