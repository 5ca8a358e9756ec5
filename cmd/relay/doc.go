// Package main runs the in-memory heartx relay.
//
// Usage
//
//	relay [--config relay.yaml] [--listen :8080]
//
// The config file may set listen, metrics, rate.rps, rate.burst, log.level and
// log.format. HEARTX_RELAY_* environment variables override the file, and
// --listen overrides both. The API is documented in package relayserver.
//
// All state is lost on exit. SIGINT or SIGTERM triggers a graceful shutdown.
package main
