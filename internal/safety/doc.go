// Package safety handles crisis-flagged survey submissions. Alerts are
// persisted before any delivery attempt and paged to the study team over
// an SMS gateway on a fast path that bypasses the normal sync cadence.
package safety
