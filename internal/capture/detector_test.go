package capture

import (
	"bytes"
	"testing"
)

func TestFrameChangedLengthDiffers(t *testing.T) {
	d := NewDetector(1000, 100)
	prev := bytes.Repeat([]byte{0xAA}, 4096)
	next := bytes.Repeat([]byte{0xAA}, 4097)
	if !d.FrameChanged(prev, next) {
		t.Fatal("length change must always count as changed")
	}
}

func TestFrameChangedIdenticalFrames(t *testing.T) {
	d := NewDetector(1000, 100)
	frame := bytes.Repeat([]byte{0x7F}, 1<<20)
	if d.FrameChanged(frame, append([]byte(nil), frame...)) {
		t.Fatal("identical frames must not count as changed")
	}
}

func TestFrameChangedThresholdBoundary(t *testing.T) {
	const stride = 10
	const threshold = 5
	d := NewDetector(stride, threshold)

	base := bytes.Repeat([]byte{0x00}, 1000)

	// Exactly threshold sampled mismatches: not changed.
	atThreshold := append([]byte(nil), base...)
	for i := 0; i < threshold; i++ {
		atThreshold[i*stride] = 0xFF
	}
	if d.FrameChanged(base, atThreshold) {
		t.Fatal("mismatches equal to threshold must not count as changed")
	}

	// One more sampled mismatch crosses the threshold.
	overThreshold := append([]byte(nil), atThreshold...)
	overThreshold[threshold*stride] = 0xFF
	if !d.FrameChanged(base, overThreshold) {
		t.Fatal("mismatches above threshold must count as changed")
	}
}

func TestFrameChangedIgnoresUnsampledBytes(t *testing.T) {
	const stride = 10
	d := NewDetector(stride, 5)

	base := bytes.Repeat([]byte{0x00}, 1000)
	offStride := append([]byte(nil), base...)
	// Corrupt many bytes, none on a sampled offset.
	for i := 1; i < len(offStride); i += stride {
		offStride[i] = 0xFF
	}
	if d.FrameChanged(base, offStride) {
		t.Fatal("bytes off the sampling stride must not affect the verdict")
	}
}

func TestMarkupDigestNormalizesBeforeHashing(t *testing.T) {
	// U+00E9 versus e + U+0301: same text after NFC normalization.
	composed := "<p>café</p>"
	decomposed := "<p>café</p>"
	if MarkupDigest(composed) != MarkupDigest(decomposed) {
		t.Fatal("canonically equivalent markup must hash identically")
	}
	if MarkupDigest(composed) == MarkupDigest("<p>cafe</p>") {
		t.Fatal("different markup must hash differently")
	}
}

func TestMarkupDigestStable(t *testing.T) {
	if MarkupDigest("<html></html>") != MarkupDigest("<html></html>") {
		t.Fatal("digest must be deterministic")
	}
}
