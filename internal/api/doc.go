// Package api serves the loopback HTTP bridge the on-device capture
// surface posts into: events for ingestion, crisis alerts for the safety
// fast path, and a status endpoint for diagnostics.
package api
