package capture

import (
	browshotV1 "browshot/api/v1"
	"context"
)

type CaptureResult struct {
	ScreenshotID int64
	FinalURL     string
	Screenshot   []byte
	HTML         []byte
}

type CaptureOptions struct {
	// InstanceID overrides the capturer's default instance when non-zero.
	InstanceID int64
	// HTML also retrieves the rendered page source.
	HTML bool
	// Args are sent with screenshot/create.
	Args *browshotV1.Args
	// ThumbnailArgs are sent with screenshot/thumbnail, e.g. width or ratio.
	ThumbnailArgs *browshotV1.Args
}

type Capturer interface {
	Capture(ctx context.Context, url string, captureOptions CaptureOptions) (*CaptureResult, error)
}
