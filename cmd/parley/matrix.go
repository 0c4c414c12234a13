package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parleyhq/parley"
)

// runMatrix sweeps backend pairings through one template. Pair failures are
// reported individually; the exit code is non-zero when any pair failed.
func runMatrix(args []string) {
	fs := flag.NewFlagSet("matrix", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	templateName := fs.String("template", "", "Template name (empty uses the config default)")
	var models stringList
	fs.Var(&models, "model", "Backend key to include in the sweep (repeatable)")
	var pairs stringList
	fs.Var(&pairs, "pair", "Explicit pair as first:second (repeatable, overrides --model expansion)")
	maxTurns := fs.Int("max-turns", 0, "Turn limit per pair; 0 uses the config default")
	temp := fs.Float64("temp", 0, "Sampling temperature; 0 uses the config default")
	parallel := fs.Int("parallel", 2, "Concurrently running pairs")
	fs.Parse(args)

	explicit := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		first, second, ok := strings.Cut(p, ":")
		if !ok || first == "" || second == "" {
			fail("bad --pair %q: want first:second", p)
		}
		explicit = append(explicit, [2]string{first, second})
	}
	if len(models) == 0 && len(explicit) == 0 {
		fail("matrix needs --model keys or --pair entries")
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := parley.Matrix(ctx, parley.MatrixOptions{
		Config:      cfg,
		Keys:        models,
		Pairs:       explicit,
		Template:    *templateName,
		Temperature: *temp,
		MaxTurns:    *maxTurns,
		Parallel:    *parallel,
		Logger:      logger,
	})
	if err != nil {
		fail("matrix failed: %v", err)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL  %s x %s: %v\n", res.Pair[0], res.Pair[1], res.Err)
			continue
		}
		fmt.Printf("ok    %s x %s  %d turns (%s)  %s\n",
			res.Pair[0], res.Pair[1], res.Turns, res.Reason, res.TranscriptPath)
	}
	fmt.Printf("%d/%d pairs succeeded\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}
