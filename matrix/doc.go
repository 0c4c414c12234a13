// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package matrix runs one conversation per backend pair.

A key list expands into its full cartesian product, diagonal included
(running a model against itself is the classic setup), or the caller names
the pairs explicitly. Pairs execute in parallel under a bounded errgroup
while one shared token bucket per backend family keeps the combined call
rate inside provider limits. A failing pair never takes its siblings down;
every pair reports its own transcript path, turn count, termination reason
and error.

Adapter construction is injected so the package stays below the root
facade: production passes the real factory, tests pass scripted backends.
*/
package matrix
