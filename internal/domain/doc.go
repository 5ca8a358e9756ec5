// Package domain defines core data models, contracts and the error taxonomy
// shared across heartx. It contains plain types (wire/state) and interfaces
// only; no package here talks to the network or the disk.
package domain
