// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type definitions for parley.

# Overview

types is the lowest-level package in the module. It depends on nothing but
the standard library and gives every other package (backend, conversation,
transcript, template) a single contract for conversation messages and
structured errors, avoiding circular imports.

# Core types

  - Message / Role  — one conversation entry with an actor-relative role
  - Error/ErrorCode — structured error with backend name, HTTP status and
    retryability metadata

# Conventions

Roles are actor-relative: an actor's own output is RoleAssistant in its own
history and RoleUser in every other actor's history. Errors are built with
NewError and the With* chain; IsCode and GetErrorCode inspect wrapped values.
*/
package types
