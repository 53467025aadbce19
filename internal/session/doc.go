// Package session manages the single app-instance registration of this process.
//
// A Session owns the persisted session record and is the only component that mutates it.
// Host calls (Initialize, Activate, Deactivate, setters, lifecycle signals) and network
// completions all serialize on one mutex; network I/O runs on background goroutines
// outside the lock and re-validates the session before applying results, so completions
// that belong to an older identity or activation are discarded.
package session
