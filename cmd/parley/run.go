package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/internal/console"
)

// runRun drives one conversation, echoing turns as they are produced.
// Interrupting the process cancels the run; the partial transcript still
// flushes.
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	templateName := fs.String("template", "", "Template name (empty uses the config default)")
	var models stringList
	fs.Var(&models, "model", "Backend key for the next actor slot (repeatable)")
	maxTurns := fs.Int("max-turns", 0, "Turn limit; 0 uses the config default")
	temp := fs.Float64("temp", 0, "Sampling temperature; 0 uses the config default")
	quiet := fs.Bool("quiet", false, "Suppress turn echo")
	fs.Parse(args)

	if len(models) == 0 {
		fail("run needs at least one --model (see 'parley help' for keys)")
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := parley.Options{
		Config:      cfg,
		Template:    *templateName,
		BackendKeys: models,
		Temperature: *temp,
		MaxTurns:    *maxTurns,
		Logger:      logger,
	}
	if !*quiet {
		printer := console.NewPrinter(os.Stdout)
		opts.Sink = func(turnIndex, actorIndex int, actorName, content string) {
			printer.Turn(actorIndex, actorName, content)
		}
	}

	res, err := parley.Run(ctx, opts)
	if err != nil {
		if res != nil && res.TranscriptPath != "" {
			fmt.Fprintf(os.Stderr, "partial transcript: %s\n", res.TranscriptPath)
		}
		fail("run failed: %v", err)
	}

	fmt.Printf("\n%d turns (%s) in %s\n", res.Turns, res.Reason, res.Duration.Round(time.Millisecond))
	fmt.Printf("transcript: %s\n", res.TranscriptPath)
}
