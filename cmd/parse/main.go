// The parse binary runs one-off extractions from the command line, either
// a single email by ID or a filtered batch.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/mailparse/internal/app"
	"github.com/dvloznov/mailparse/internal/config"
	"github.com/dvloznov/mailparse/internal/logger"
	"github.com/dvloznov/mailparse/internal/parsing"
)

func main() {
	var (
		emailID  = flag.String("email-id", "", "parse a single email by ID")
		force    = flag.Bool("force", false, "reparse even if already parsed")
		batch    = flag.Bool("batch", false, "parse all pending emails")
		sender   = flag.String("sender", "", "restrict batch to one sender")
		maxItems = flag.Int("max-items", 0, "max emails fetched in batch mode")
	)
	flag.Parse()

	if *emailID == "" && !*batch {
		fmt.Fprintln(os.Stderr, "either -email-id or -batch is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()

	engine, err := app.BuildEngine(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build parsing engine")
	}
	defer engine.Close()

	if *emailID != "" {
		cand, err := engine.ParseOne(ctx, *emailID, *force)
		if err != nil {
			log.Fatal().Err(err).Str("email_id", *emailID).Msg("Parse failed")
		}
		printJSON(cand)
		return
	}

	filter := parsing.EmailFilter{Sender: *sender, MaxItems: *maxItems}
	stats, err := engine.ParseBatch(ctx, filter, parsing.BatchOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Batch parse failed")
	}
	printJSON(stats)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
