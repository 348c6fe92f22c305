package capture

import "context"

// Target is the webview-controller collaborator the scheduler polls. The
// agent core never owns the browsing surface; it only pulls frames, the
// current URL, and script results from it.
type Target interface {
	// TakeScreenshot returns the raw encoded bytes of the current frame.
	TakeScreenshot(ctx context.Context) ([]byte, error)
	// URL returns the currently loaded page URL.
	URL(ctx context.Context) (string, error)
	// EvaluateScript runs a script in the page and returns its string result.
	EvaluateScript(ctx context.Context, source string) (string, error)
}

// markupScript pulls the full document markup as text.
const markupScript = "document.documentElement.outerHTML"
