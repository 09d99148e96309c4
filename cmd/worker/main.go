// The worker binary drains pending emails on an interval, running the
// batch parser without exposing an HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/mailparse/internal/app"
	"github.com/dvloznov/mailparse/internal/config"
	"github.com/dvloznov/mailparse/internal/logger"
	"github.com/dvloznov/mailparse/internal/parsing"
)

func main() {
	var (
		interval = flag.Duration("interval", time.Minute, "how often to poll for pending emails")
		maxItems = flag.Int("max-items", 100, "max emails fetched per sweep")
		once     = flag.Bool("once", false, "run a single sweep and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.BuildEngine(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build parsing engine")
	}
	defer engine.Close()

	log.Info().Msg("Starting worker service")

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down worker service...")
		cancel()
	}()

	filter := parsing.EmailFilter{MaxItems: *maxItems}

	sweep := func() {
		stats, err := engine.ParseBatch(ctx, filter, parsing.BatchOptions{})
		if err != nil {
			log.Error().Err(err).Msg("Batch sweep failed")
			return
		}
		log.Info().
			Int64("fetched", stats.Fetched).
			Int64("processed", stats.Processed).
			Int64("generative", stats.GenerativeUsed).
			Int64("rule", stats.RuleUsed).
			Int64("unparseable", stats.Unparseable).
			Int64("errors", stats.Errors).
			Msg("Batch sweep finished")
	}

	sweep()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Worker service exited")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
