package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleyhq/parley"
)

// runCatalog handles the catalog subcommands.
func runCatalog(args []string) {
	if len(args) < 1 {
		printCatalogUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "rebuild":
		runCatalogRebuild(args[1:])
	case "list":
		runCatalogList(args[1:])
	case "stats":
		runCatalogStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown catalog subcommand: %s\n", args[0])
		printCatalogUsage()
		os.Exit(1)
	}
}

func runCatalogRebuild(args []string) {
	fs := flag.NewFlagSet("catalog rebuild", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	store, err := parley.OpenCatalog(cfg, logger)
	if err != nil {
		fail("open catalog: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := store.Rebuild(ctx, cfg.Transcripts.Dir)
	if err != nil {
		fail("rebuild catalog: %v", err)
	}

	fmt.Printf("scanned %d, indexed %d, failed %d\n", rep.Scanned, rep.Indexed, len(rep.Failures))
	// Unreadable files are routine in a hand-edited archive; report them
	// without failing the rebuild.
	for _, f := range rep.Failures {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", f.File, f.Err)
	}
}

func runCatalogList(args []string) {
	fs := flag.NewFlagSet("catalog list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 20, "Maximum entries to show (0 = all)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	store, err := parley.OpenCatalog(cfg, nil)
	if err != nil {
		fail("open catalog: %v", err)
	}
	defer store.Close()

	entries, err := store.List(context.Background(), *limit)
	if err != nil {
		fail("list catalog: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("catalog is empty; run `parley catalog rebuild` first")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-12s  %-20s  %3d turns  %s\n",
			e.StartedAt.Format("2006-01-02 15:04"), e.Status, e.Template, e.NumTurns, e.Filename)
	}
}

func runCatalogStats(args []string) {
	fs := flag.NewFlagSet("catalog stats", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	store, err := parley.OpenCatalog(cfg, nil)
	if err != nil {
		fail("open catalog: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	stats, err := store.Stats(ctx)
	if err != nil {
		fail("catalog stats: %v", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		fail("catalog count: %v", err)
	}

	fmt.Printf("%-16s  %11s  %8s  %10s\n", "FAMILY", "TRANSCRIPTS", "TURNS", "TOKENS")
	for _, s := range stats {
		fmt.Printf("%-16s  %11d  %8d  %10d\n", s.Family, s.Transcripts, s.Turns, s.Tokens)
	}
	fmt.Printf("\n%d transcripts indexed\n", total)
}

func printCatalogUsage() {
	fmt.Println(`Usage:
  parley catalog rebuild [--config <path>]
  parley catalog list [--config <path>] [--limit <n>]
  parley catalog stats [--config <path>]`)
}
