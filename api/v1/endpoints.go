package v1

import (
	"context"

	"golang.org/x/xerrors"
)

func (c *Client) invalid(message string) *ValidationError {
	c.logger.Error(message)
	return &ValidationError{Message: message}
}

func (c *Client) invalidReply(message string) (Reply, error) {
	err := c.invalid(message)
	return err.Reply(), err
}

// AccountInfo returns the account balance and usage.
func (c *Client) AccountInfo(ctx context.Context, args *Args) (Reply, error) {
	return c.Reply(ctx, "account/info", args)
}

func (c *Client) InstanceList(ctx context.Context) (Reply, error) {
	return c.Reply(ctx, "instance/list", nil)
}

func (c *Client) InstanceInfo(ctx context.Context, id int64) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing instance ID")
	}
	return c.Reply(ctx, "instance/info", NewArgs().Set("id", id))
}

func (c *Client) BrowserList(ctx context.Context) (Reply, error) {
	return c.Reply(ctx, "browser/list", nil)
}

func (c *Client) BrowserInfo(ctx context.Context, id int64) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing browser ID")
	}
	return c.Reply(ctx, "browser/info", NewArgs().Set("id", id))
}

// ScreenshotCreate requests a screenshot; args must contain url and
// instance_id. Screenshots are cached by the service for 24 hours unless a
// cache argument says otherwise.
func (c *Client) ScreenshotCreate(ctx context.Context, args *Args) (Reply, error) {
	if !args.Has("url") {
		return c.invalidReply("Missing URL")
	}
	if !args.Has("instance_id") {
		return c.invalidReply("Missing instance ID")
	}
	return c.Reply(ctx, "screenshot/create", args)
}

func (c *Client) ScreenshotInfo(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing screenshot ID")
	}
	return c.Reply(ctx, "screenshot/info", args.Clone().Set("id", id))
}

func (c *Client) ScreenshotList(ctx context.Context, args *Args) (Reply, error) {
	return c.Reply(ctx, "screenshot/list", args)
}

func (c *Client) ScreenshotSearch(ctx context.Context, url string, args *Args) (Reply, error) {
	if url == "" {
		return c.invalidReply("Missing screenshot URL")
	}
	return c.Reply(ctx, "screenshot/search", args.Clone().Set("url", url))
}

func (c *Client) ScreenshotHost(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing screenshot ID")
	}
	return c.Reply(ctx, "screenshot/host", args.Clone().Set("id", id))
}

// ScreenshotThumbnail returns the screenshot or a scaled thumbnail of it.
// Only a PNG or JPEG payload is ever returned; anything else is retried and
// ends in ErrImageUnavailable or ErrInvalidImage with a nil payload.
func (c *Client) ScreenshotThumbnail(ctx context.Context, id int64, args *Args) ([]byte, error) {
	if id == 0 {
		return nil, c.invalid("Missing screenshot ID")
	}
	return c.image(ctx, "screenshot/thumbnail", args.Clone().Set("id", id))
}

// ShotThumbnail is ScreenshotThumbnail for a specific shot; shot is
// returned alongside the image.
func (c *Client) ShotThumbnail(ctx context.Context, id int64, shot int, args *Args) ([]byte, int, error) {
	if id == 0 {
		return nil, shot, c.invalid("Missing screenshot ID")
	}
	image, err := c.image(ctx, "screenshot/thumbnail", args.Clone().Set("id", id).Set("shot", shot))
	return image, shot, err
}

// ScreenshotThumbnailFile saves the thumbnail to file through the client
// storage and returns where it was written.
func (c *Client) ScreenshotThumbnailFile(ctx context.Context, id int64, file string, args *Args) (string, error) {
	if id == 0 {
		return "", c.invalid("Missing screenshot ID")
	}
	if file == "" {
		return "", c.invalid("Missing file")
	}

	image, err := c.ScreenshotThumbnail(ctx, id, args)
	if err != nil {
		c.logger.Error("No screenshot retrieved", "id", id)
		return "", err
	}

	location, err := c.storage.Put(ctx, file, image)
	if err != nil {
		c.logger.Error("failed to save screenshot", "id", id, "file", file, "error", err)
		return "", xerrors.Errorf("failed to save screenshot %d: %w", id, err)
	}
	return location, nil
}

func (c *Client) ScreenshotShare(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing screenshot ID")
	}
	return c.Reply(ctx, "screenshot/share", args.Clone().Set("id", id))
}

func (c *Client) ScreenshotDelete(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing screenshot ID")
	}
	return c.Reply(ctx, "screenshot/delete", args.Clone().Set("id", id))
}

// ScreenshotHTML returns the HTML of the rendered page.
func (c *Client) ScreenshotHTML(ctx context.Context, id int64) (string, error) {
	if id == 0 {
		return "", c.invalid("Missing screenshot ID")
	}
	return c.String(ctx, "screenshot/html", NewArgs().Set("id", id))
}

func (c *Client) ScreenshotMultiple(ctx context.Context, args *Args) (Reply, error) {
	return c.Reply(ctx, "screenshot/multiple", args)
}

// BatchCreate uploads file, a text file with one URL per line.
func (c *Client) BatchCreate(ctx context.Context, file string, instanceID int64, args *Args) (Reply, error) {
	if file == "" {
		return c.invalidReply("Missing file")
	}
	if instanceID == 0 {
		return c.invalidReply("Missing instance ID")
	}
	return c.PostReply(ctx, "batch/create", args.Clone().Set("instance_id", instanceID).Set(fileKey, file))
}

func (c *Client) BatchInfo(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing batch ID")
	}
	return c.Reply(ctx, "batch/info", args.Clone().Set("id", id))
}

// CrawlCreate screenshots the pages of domain, starting from url.
func (c *Client) CrawlCreate(ctx context.Context, domain string, url string, instanceID int64, args *Args) (Reply, error) {
	if domain == "" {
		return c.invalidReply("Missing domain")
	}
	if url == "" {
		return c.invalidReply("Missing url")
	}
	if instanceID == 0 {
		return c.invalidReply("Missing instance ID")
	}
	return c.Reply(ctx, "crawl/create", args.Clone().Set("instance_id", instanceID).Set("domain", domain).Set("url", url))
}

func (c *Client) CrawlInfo(ctx context.Context, id int64, args *Args) (Reply, error) {
	if id == 0 {
		return c.invalidReply("Missing crawl ID")
	}
	return c.Reply(ctx, "crawl/info", args.Clone().Set("id", id))
}
