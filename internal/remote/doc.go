// Package remote implements the HTTP client for the study's remote store.
// Every write is an idempotent upsert keyed by record id, which lets the
// sync engine retry batches without ever producing duplicates.
package remote
