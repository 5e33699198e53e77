// Package cmd implements the command-line interface for the qKV embedded
// key-value store. Every invocation opens the data file, runs one operation
// and closes the store again.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, set, delete, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See qkv -help for a list of all commands.
package cmd
