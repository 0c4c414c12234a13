// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package template stores conversation templates as JSONL files, one actor
slot per line:

	{"system_prompt": "You are {lm1_actor}.", "context": [{"role": "user", "content": "begin"}], "cli": false}

A template's slot count must equal the number of backends selected for the
run; Load enforces that before any network traffic happens. Placeholder
tokens inside prompts and context messages are resolved later, at run
assembly; Validate only reports tokens that can never resolve.

The built-in default template (two empty slots) is materialized on first
use so a fresh checkout can run without any setup.
*/
package template
