package capture

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Detector decides whether a freshly captured visual or textual artifact
// differs enough from the prior one to warrant storage. Frame comparison
// uses fixed-stride sampling: full pixel comparison is too costly at the
// capture cadence, so a bounded false-negative rate is traded for
// O(size/stride) cost.
type Detector struct {
	stride    int
	threshold int
}

// NewDetector constructs a detector with the given sampling stride and
// mismatch threshold. Non-positive values fall back to the defaults used
// throughout the study (stride 1000, threshold 100).
func NewDetector(stride, threshold int) *Detector {
	if stride <= 0 {
		stride = 1000
	}
	if threshold <= 0 {
		threshold = 100
	}
	return &Detector{stride: stride, threshold: threshold}
}

// FrameChanged reports whether next differs meaningfully from prev. A
// length difference is always a change. Equal-length frames are sampled
// every stride bytes; the frame counts as changed only when sampled
// mismatches exceed the threshold. Sampling short-circuits once the
// threshold is exceeded but never declares "unchanged" early.
func (d *Detector) FrameChanged(prev, next []byte) bool {
	if len(prev) != len(next) {
		return true
	}
	mismatches := 0
	for i := 0; i < len(next); i += d.stride {
		if prev[i] != next[i] {
			mismatches++
			if mismatches > d.threshold {
				return true
			}
		}
	}
	return mismatches > d.threshold
}

// MarkupDigest returns the deterministic content digest for full-page
// markup. Text is normalized to NFC first so byte-level differences in
// producer encodings do not defeat deduplication.
func MarkupDigest(markup string) string {
	normalized := norm.NFC.String(markup)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
