package capture

import (
	"testing"

	"socialscope/internal/store"
)

func TestPlatformFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want store.Platform
	}{
		{"https://reddit.com/r/news", store.PlatformReddit},
		{"https://www.reddit.com/r/news", store.PlatformReddit},
		{"https://old.reddit.com/r/news", store.PlatformReddit},
		{"https://twitter.com/home", store.PlatformTwitter},
		{"https://x.com/home", store.PlatformTwitter},
		{"https://mobile.twitter.com/home", store.PlatformTwitter},
		{"https://example.com/page", store.PlatformOther},
		{"", store.PlatformUnknown},
		{"not a url", store.PlatformUnknown},
	}
	for _, tc := range cases {
		if got := platformFromURL(tc.url); got != tc.want {
			t.Errorf("platformFromURL(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}
