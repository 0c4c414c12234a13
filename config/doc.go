// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package config loads parley's runtime configuration. Precedence is
// defaults, then an optional YAML file (parley.yaml), then PARLEY_*
// environment overrides; the result is validated before anything uses it.
// Sections cover logging, artifact locations (transcripts, templates,
// catalog), run defaults and per-family backend settings including shared
// rate limits.
package config
