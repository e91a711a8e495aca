// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework for ipcdemo.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The command tree is assembled in cmd/ipcdemo/commands and
// dispatched with [Command.Execute], which parses flags, routes
// subcommands, and prints structured help with examples. Flag sets are
// usually built from tagged parameter structs with [FlagsFromParams].
//
// Unknown subcommands and flags get a "did you mean" suggestion based
// on Levenshtein edit distance (at most 3).
//
// Commands return categorized errors ([Validation], [Transient],
// [Internal]) and [ExitError] for a deliberate non-zero exit.
package cli
