// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package transcript persists conversation runs as plain-text artifacts and
reconstructs structured records from them.

# Writer

Writer buffers turns in memory during a run and performs exactly one flush at
termination. Normal and control-sequence terminations finalize the artifact
with status completed / interrupted; a backend failure still flushes the
partial buffer, tagged aborted with the cause, so no conversation data is
silently lost. Files land under

	<dir>/<family join>/<key join>_<template>_<YYYYMMDD_HHMMSS>.txt

where the family join is the de-duplicated first-appearance list of backend
families and the key join is the ordered descriptor keys.

# Parser

Parse recovers actors, backend ids, system prompts, turns and run metadata
from transcript text. Header layouts drifted across history, so parsing tries
an ordered list of strategies (the writer's own keyed layout, the scraped
archive layout, then the legacy underscore layout), accepting the first full
match and failing with UNRECOGNIZED_HEADER_FORMAT only when none apply.
Structural problems inside a matched file (round-robin deviations, short
actor discovery, header count disagreements) are soft: they append anomaly
flags to the record and never abort the parse.
*/
package transcript
