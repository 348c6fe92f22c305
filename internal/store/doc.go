// Package store provides the append-only local durable store backed by
// SQLite: sessions, events, screenshot and markup captures, markup poll
// status logs, and safety alerts. Every record is persisted here before
// any network operation touches it.
package store
