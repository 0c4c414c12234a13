// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package main is the parley command line.

# Overview

cmd/parley exposes the library's run, parse, recreate, matrix, templates
and catalog operations as subcommands, each with its own flag set. Startup
loads an optional .env for API keys, then the YAML/env config, then builds
the zap logger from the config's log section. Turn echo renders through the
actor color scheme in internal/console.

# Subcommands

  - run        — one conversation between the selected backends
  - matrix     — every ordered backend pairing through one template
  - parse      — transcript back into structured form (text or JSON)
  - recreate   — transcript into a runnable template, optionally re-run
  - templates  — list and validate conversation templates
  - catalog    — index transcripts, list entries, per-family statistics
  - version    — build information (Version, BuildTime, GitCommit via ldflags)
*/
package main
