// Package commands defines the heartx CLI and wires dependencies for subcommands.
//
// Commands
//
//   - register     Create the identity and publish its sealed key
//   - login-check  Unlock the key to confirm the password
//   - draft        Place or clear a local selection
//   - commit       Send every draft to the relay in one submission
//   - withdraw     Remove a committed selection
//   - slots        Show the four slots
//   - claim        Claim inbound hearts and check for matches once
//   - watch        Keep claiming and checking on an interval
//   - matches      List verified matches
//   - late         Review hearts that arrived after you committed
//   - recovery     Create or use a recovery code
//   - reset        Drop everything for the identity after a password change
//
// # Implementation
//
// The root command loads configuration and builds the dependency graph
// (stores, services, relay client, crypto worker) before any subcommand runs.
// Passwords come from -p or an interactive prompt and are never stored.
package commands
