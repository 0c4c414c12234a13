// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package personality carries the built-in personality profiles that can be
// layered onto any template slot: each profile appends a style paragraph to
// the slot's system prompt and nudges the sampling temperature, leaving the
// conversation structure untouched.
package personality
