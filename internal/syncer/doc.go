// Package syncer uploads locally captured records to the remote study
// store in the background. The local database is the source of truth:
// records stay marked unsynced until the remote acknowledges them, and
// failed passes retry on a shortened interval.
package syncer
