package capture

import (
	"context"
	"time"
)

type CaptureResult struct {
	// Screenshot is always PNG encoded; lossy formats would register as
	// pixel differences against the baseline.
	Screenshot []byte
	URL        string
	CapturedAt time.Time
}

type CaptureOptions struct {
	Headers       map[string]string
	MaskSelectors []string
	// Viewport overrides the configured window size when both are positive.
	ViewportWidth  int
	ViewportHeight int
	// WaitSelector delays the screenshot until the element is visible.
	WaitSelector string
}

type Capturer interface {
	Capture(ctx context.Context, url string, captureOptions CaptureOptions) (*CaptureResult, error)
}
