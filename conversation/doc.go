// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package conversation runs turn-based multi-actor exchanges.

# Overview

An Orchestrator owns an ordered slice of Actors for the lifetime of one run.
Each turn it selects the next actor round-robin, asks it to produce a reply
through its bound backend adapter, records the turn, and broadcasts the
content to every other actor as incoming user input. Role labels are
actor-relative: an actor sees its own output as assistant and everyone
else's as user.

A run terminates for exactly one of three reasons: the configured turn limit
was reached, a produced turn contained the control sequence, or a backend
call failed. In every case the recorder flushes whatever was produced, so a
failing backend never silently discards conversation data.

# Assembly

BuildActors validates the slot count against the selected backends and checks
credentials before any traffic, resolves {lmN_actor} / {lmN_company}
placeholders against the final actor line-up, and seeds each actor's history
from its template context. Seed entries keep their authored roles; the
user/assistant flip applies only to turns exchanged during the run.
*/
package conversation
