// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the embedding provider, the per-session
// vector index, the snapshot store and the settings store.
//
// Implementations live under internal/adapters/driven.
package driven
