// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (errors.go, state.go, store.go, etc.)
// with shared types and cross-cutting interfaces. No implementation code - just contracts.
// Host capabilities (storage, transport, lifecycle notifications) are declared here so
// the session core depends on interfaces, not concrete adapters.
package domain
