// Package capture drives periodic screenshot and markup capture against
// an attached webview target, deduplicating via fixed-stride frame
// sampling and markup content digests.
package capture
