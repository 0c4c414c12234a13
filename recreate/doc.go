// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package recreate turns parsed transcripts back into runnable templates,
closing the loop between the parser and the orchestrator: slot i of the
rebuilt template gets the record's system prompt, the run's turns seeded
chronologically into slot i's own perspective (its turns as assistant,
everyone else's as user), and the tool flag derived from the backend that
produced the slot.

Structural anomalies in a record never decide anything here by themselves:
whether an anomalous transcript is still worth rebuilding is the caller's
policy, passed in through Options.AllowAnomalies.
*/
package recreate
