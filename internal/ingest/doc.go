// Package ingest validates and persists event payloads posted by
// instrumented web content.
package ingest
