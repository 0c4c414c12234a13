// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package backend defines the adapter boundary between the conversation engine
and the heterogeneous completion services behind it.

# Overview

Every backend family (anthropic, openai, gemini, world-interface) exposes the
same two-call surface: CheckCredentials at run setup and Complete per turn.
The family-specific calling conventions (dedicated system channel vs. folded
system prompt, visible vs. hidden token budgets, tool execution instead of
generation) live entirely inside the adapter implementations under
backend/anthropic, backend/openai, backend/gemini and backend/worldiface.
Call sites never branch on family.

# Core types

  - Request    — uniform completion request (system prompt, history, temperature)
  - Adapter    — the adapter interface
  - Descriptor — static capability record for one backend model
  - Registry   — immutable descriptor lookup, safe for concurrent reads

# Rate limiting

WithRateLimit wraps any Adapter with a token-bucket limiter so batch callers
can respect per-family provider limits without the single-run path paying for
it.
*/
package backend
