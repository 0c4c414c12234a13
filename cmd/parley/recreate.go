package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/internal/console"
)

// runRecreate rebuilds a transcript into a stored template and either prints
// the follow-up command or runs it immediately with --run.
func runRecreate(args []string) {
	fs := flag.NewFlagSet("recreate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	personality := fs.String("personality", "", "Apply a personality profile to every slot")
	maxSeed := fs.Int("max-seed-turns", 0, "Cap how many turns seed the template; 0 seeds all")
	var models stringList
	fs.Var(&models, "model", "Replacement backend key per slot (repeatable)")
	allowAnomalies := fs.Bool("allow-anomalies", true, "Rebuild records carrying structural anomalies")
	runAfter := fs.Bool("run", false, "Run the rebuilt template immediately")
	maxTurns := fs.Int("max-turns", 0, "Turn limit for --run; 0 uses the config default")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fail("usage: parley recreate [options] <transcript.txt>")
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := parley.Recreate(ctx, fs.Arg(0), parley.RecreateOptions{
		Config:         cfg,
		Personality:    *personality,
		MaxSeedTurns:   *maxSeed,
		BackendKeys:    models,
		AllowAnomalies: *allowAnomalies,
		Logger:         logger,
	})
	if err != nil {
		fail("recreate failed: %v", err)
	}

	fmt.Printf("template: %s\n", out.Template.Name)
	fmt.Printf("file:     %s\n", out.TemplatePath)
	fmt.Printf("backends: %s\n", strings.Join(out.Keys, ", "))

	if !*runAfter {
		cmd := []string{"parley run", "--template", out.Template.Name}
		for _, key := range out.Keys {
			cmd = append(cmd, "--model", key)
		}
		fmt.Printf("\nrun it:   %s\n", strings.Join(cmd, " "))
		return
	}

	printer := console.NewPrinter(os.Stdout)
	res, err := parley.Run(ctx, parley.Options{
		Config:      cfg,
		Template:    out.Template.Name,
		BackendKeys: out.Keys,
		MaxTurns:    *maxTurns,
		Sink: func(turnIndex, actorIndex int, actorName, content string) {
			printer.Turn(actorIndex, actorName, content)
		},
		Logger: logger,
	})
	if err != nil {
		if res != nil && res.TranscriptPath != "" {
			fmt.Fprintf(os.Stderr, "partial transcript: %s\n", res.TranscriptPath)
		}
		fail("run failed: %v", err)
	}

	fmt.Printf("\n%d turns (%s) in %s\n", res.Turns, res.Reason, res.Duration.Round(time.Millisecond))
	fmt.Printf("transcript: %s\n", res.TranscriptPath)
}
