// Package agent assembles the capture pipeline into a single long-running
// daemon: durable store, session lifecycle, payload ingestion, capture
// scheduling, background sync, safety alerting, and the loopback API.
package agent
