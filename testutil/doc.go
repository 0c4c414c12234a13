// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package testutil provides shared helpers for Parley tests.

Subpackages:

  - mocks    — scripted in-memory backend adapters with call recording
  - fixtures — canonical transcript texts in every supported layout

The helpers here keep individual test files small: context plumbing with
automatic cleanup, message assertions, and temp-file scaffolding for the
transcript round-trip tests.
*/
package testutil
