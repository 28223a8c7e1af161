package capture

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/retry"
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var ErrPollTimeout = errors.New("screenshot did not finish in time")

type BrowshotConfig struct {
	// InstanceID is used when CaptureOptions does not name one. Instance 12
	// is the free public instance.
	InstanceID int64
	Size       string

	// PollStrategy spaces out screenshot/info calls until the screenshot is
	// finished; polling stops with ErrPollTimeout once it is exceeded.
	PollStrategy retry.Strategy
}

func DefaultBrowshotConfig() BrowshotConfig {
	return BrowshotConfig{
		InstanceID:   12,
		Size:         "screen",
		PollStrategy: retry.NewExponentialBackOff(2*time.Second, 30*time.Second, 30, nil),
	}
}

type browshotCapturer struct {
	client *browshotV1.Client
	config BrowshotConfig
}

func NewBrowshotCapturer(ctx context.Context, client *browshotV1.Client, b BrowshotConfig) (Capturer, error) {
	if client == nil {
		return nil, xerrors.New("browshot client is required")
	}
	if b.PollStrategy == nil {
		b.PollStrategy = DefaultBrowshotConfig().PollStrategy
	}

	return &browshotCapturer{
		client: client,
		config: b,
	}, nil
}

func (c *browshotCapturer) Capture(ctx context.Context, url string, captureOptions CaptureOptions) (*CaptureResult, error) {
	instanceID := captureOptions.InstanceID
	if instanceID == 0 {
		instanceID = c.config.InstanceID
	}

	args := captureOptions.Args.Clone().Set("url", url).Set("instance_id", instanceID)
	if c.config.Size != "" && !args.Has("size") {
		args.Set("size", c.config.Size)
	}

	reply, err := c.client.ScreenshotCreate(ctx, args)
	if err != nil {
		return nil, xerrors.Errorf("failed to create screenshot of %s: %w", url, err)
	}

	screenshot, err := c.wait(ctx, reply)
	if err != nil {
		return nil, xerrors.Errorf("failed to capture %s: %w", url, err)
	}

	result := &CaptureResult{
		ScreenshotID: int64(screenshot.ID),
		FinalURL:     screenshot.FinalURL,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		image, err := c.client.ScreenshotThumbnail(ctx, result.ScreenshotID, captureOptions.ThumbnailArgs)
		if err != nil {
			return xerrors.Errorf("failed to download screenshot %d: %w", result.ScreenshotID, err)
		}
		result.Screenshot = image
		return nil
	})

	if captureOptions.HTML {
		eg.Go(func() error {
			html, err := c.client.ScreenshotHTML(ctx, result.ScreenshotID)
			if err != nil {
				return xerrors.Errorf("failed to download HTML of screenshot %d: %w", result.ScreenshotID, err)
			}
			result.HTML = []byte(html)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// wait polls screenshot/info until the screenshot reaches a final state.
func (c *browshotCapturer) wait(ctx context.Context, reply browshotV1.Reply) (*browshotV1.Screenshot, error) {
	for n := uint(0); ; n++ {
		if reply.IsError() && reply.Status() != browshotV1.ScreenshotStatusError {
			return nil, xerrors.Errorf("browshot error: %s", reply.ErrorMessage())
		}

		var screenshot browshotV1.Screenshot
		if err := reply.Decode(&screenshot); err != nil {
			return nil, err
		}
		if screenshot.Status == browshotV1.ScreenshotStatusError {
			return nil, xerrors.Errorf("screenshot %d failed: %s", screenshot.ID, screenshot.Error)
		}
		if screenshot.Done() {
			return &screenshot, nil
		}
		if screenshot.ID == 0 {
			return nil, xerrors.Errorf("no screenshot ID in reply with status %q", screenshot.Status)
		}

		sleep, exceeded := c.config.PollStrategy.Sleep(n)
		if exceeded {
			return nil, xerrors.Errorf("screenshot %d still %s: %w", screenshot.ID, screenshot.Status, ErrPollTimeout)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		var err error
		reply, err = c.client.ScreenshotInfo(ctx, int64(screenshot.ID), nil)
		if err != nil {
			return nil, xerrors.Errorf("failed to get screenshot %d: %w", screenshot.ID, err)
		}
	}
}
