// Package app wires application dependencies for the CLI.
//
// LoadConfig merges defaults, the optional config.yaml in the home directory,
// HEARTX_* environment variables and command-line flags. NewWire builds the
// relay client, per-identity stores, services and the crypto worker from the
// result, and Session bundles the unlocked key with its board and ledger.
package app
