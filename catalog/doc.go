// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package catalog maintains a sqlite index of transcript metadata.

Rebuild walks a transcript tree, runs every .txt through the tolerant
transcript parser and upserts one row per file: template, start time,
status, backends, actors, temperatures, turn and character counts, token
counts and the number of structural anomalies. Files that fail to parse
are reported, never fatal, and rerunning over an unchanged tree leaves
the same rows in place. Stats aggregates the rows per backend family.

Token counts use the cl100k_base encoding; when the encoding cannot be
loaded (offline hosts), counts degrade to zero with a warning.

The store rides internal/database.PoolManager over the pure-Go sqlite
driver, so the catalog needs no cgo and no external database.
*/
package catalog
