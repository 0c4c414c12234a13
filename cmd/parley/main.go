// Parley command line entry point.
//
// Usage:
//
//	parley run --model opus --model gpt4o     # one conversation
//	parley matrix --model opus --model gpt4o  # every ordered pairing
//	parley parse <transcript.txt>             # transcript to structure
//	parley recreate --run <transcript.txt>    # transcript to template
//	parley templates list                     # template inventory
//	parley catalog rebuild                    # index the transcript tree
//	parley version                            # build information
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parleyhq/parley/config"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// API keys commonly live in a .env beside the working directory; a
	// missing file is the normal case.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "matrix":
		runMatrix(os.Args[2:])
	case "parse":
		runParse(os.Args[2:])
	case "recreate":
		runRecreate(os.Args[2:])
	case "templates":
		runTemplates(os.Args[2:])
	case "catalog":
		runCatalog(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// fail reports to stderr and exits 1.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadConfig loads the YAML/env config, exiting on failure. An empty path
// means the default file, whose absence is tolerated.
func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.NewLoader().WithConfigPath(path).Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	return cfg
}

// stringList collects repeatable flag values in order.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printVersion() {
	fmt.Printf("parley %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`parley - conversations between language model backends

Usage:
  parley <command> [options]

Commands:
  run        Run one conversation between the selected backends
  matrix     Run every ordered backend pairing through one template
  parse      Parse a transcript back into structured form
  recreate   Rebuild a transcript into a runnable template
  templates  List and validate conversation templates
  catalog    Index transcripts and query the catalog
  version    Show version information
  help       Show this help message

Common options:
  --config <path>   Path to configuration file (default parley.yaml)

Backend keys:
  sonnet, opus, gpt4o, o1-preview, o1-mini, gemini, cli

Examples:
  parley run --model opus --model gpt4o --max-turns 20
  parley run --template cli --model sonnet --model cli
  parley matrix --model sonnet --model opus --model gpt4o --parallel 4
  parley parse --json transcripts/anthropic/opus_opus_default_20240601_120000.txt
  parley recreate --personality eldritch --run transcripts/anthropic/old_run.txt
  parley templates list
  parley catalog rebuild
  parley catalog stats`)
}
