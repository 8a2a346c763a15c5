package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"p3bridge/internal/bootstrap"
	"p3bridge/internal/config"
	"p3bridge/internal/delivery"
	"p3bridge/internal/events"
	"p3bridge/internal/statusapi"
	"p3bridge/internal/transport"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	log.Printf("[bootstrap] loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	counts := transport.NewCounters()
	recent := events.NewRing(1024)

	pipeCfg := delivery.Config{
		Enabled:                cfg.Post.Enabled,
		BaseURL:                cfg.Post.BaseURL,
		Path:                   cfg.Post.Path,
		Method:                 cfg.Post.Method,
		Timeout:                time.Duration(cfg.Post.TimeoutMs) * time.Millisecond,
		Retries:                cfg.Post.Retries,
		RetryDelay:             time.Duration(cfg.Post.RetryDelayMs) * time.Millisecond,
		RetryBackoffMultiplier: cfg.Post.RetryBackoffMultiplier,
		QueueDrainMaxPerTick:   cfg.Post.QueueDrainMaxPerTick,
		DrainInterval:          delivery.DefaultConfig().DrainInterval,
		Headers:                cfg.Post.Headers,
	}
	pipe, err := delivery.NewPipeline(pipeCfg, cfg.QueuePath, counts)
	if err != nil {
		log.Fatalf("delivery: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	if cfg.StatusAPI.Enabled {
		srv := statusapi.New(cfg.StatusAPI.Addr, counts, recent, pipe)
		go func() {
			if err := srv.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	} else {
		log.Printf("[statusapi] disabled")
	}

	go func() {
		deps := bootstrap.Deps{Counts: counts, Recent: recent, Pipeline: pipe}
		if err := bootstrap.RunAll(ctx, cfg, deps); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("fatal: %v", err)
	case <-ctx.Done():
	}
}
