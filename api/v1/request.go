package v1

import (
	"browshot/internal/retry"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"

	"golang.org/x/xerrors"
)

var imageContentTypes = []string{"image/png", "image/jpeg"}

// String issues a GET request and returns the raw body. Transport errors and
// statuses >= 400 are retried immediately up to the retry budget; once it is
// spent the last error response body is returned as-is, while a transport
// error yields "" and a non-nil error.
func (c *Client) String(ctx context.Context, action string, args *Args) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(action, args), nil)
	if err != nil {
		return "", xerrors.Errorf("failed to create request: %w", err)
	}

	body, _, err := c.do(c.replyClient, request)
	if err != nil {
		u, _ := args.Get("url")
		c.logger.Error("too many retries", "action", action, "url", u, "retry", c.retry, "error", err)
		return "", xerrors.Errorf("failed to request %s: %w", action, err)
	}
	return string(body), nil
}

// PostString uploads the local file named by the file argument as multipart
// form data; the remaining arguments go into the query string. Every attempt
// reopens the file, and the call fails once it can no longer be opened.
func (c *Client) PostString(ctx context.Context, action string, args *Args) (string, error) {
	args = args.Clone()
	file, _ := args.Get(fileKey)
	args.Del(fileKey)

	body, err := newMultipartBody(fileKey, file)
	if err != nil {
		c.logger.Error("failed to open upload", "action", action, "file", file, "error", err)
		return "", xerrors.Errorf("failed to open %s: %w", file, err)
	}
	first, err := body.open()
	if err != nil {
		c.logger.Error("failed to open upload", "action", action, "file", file, "error", err)
		return "", xerrors.Errorf("failed to open %s: %w", file, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(action, args), first)
	if err != nil {
		_ = first.Close()
		return "", xerrors.Errorf("failed to create request: %w", err)
	}
	request.GetBody = body.open
	request.Header.Set("Content-Type", body.contentType())

	b, _, err := c.do(c.replyClient, request)
	if err != nil {
		c.logger.Error("too many retries", "action", action, "file", file, "retry", c.retry, "error", err)
		return "", xerrors.Errorf("failed to upload %s: %w", file, err)
	}
	return string(b), nil
}

// Reply calls String and decodes the body as a JSON object. Empty or
// malformed bodies produce {error: 1, message: "Invalid server response"}
// together with an error matching ErrInvalidResponse.
func (c *Client) Reply(ctx context.Context, action string, args *Args) (Reply, error) {
	body, err := c.String(ctx, action, args)
	return c.decode(body, err)
}

func (c *Client) PostReply(ctx context.Context, action string, args *Args) (Reply, error) {
	body, err := c.PostString(ctx, action, args)
	return c.decode(body, err)
}

func (c *Client) decode(body string, requestErr error) (Reply, error) {
	if requestErr != nil {
		return invalidReply(), &InvalidResponseError{Err: requestErr}
	}

	reply, err := decodeReply(body)
	if err != nil {
		c.logger.Error("invalid JSON", "error", err, "body", body)
		return invalidReply(), &InvalidResponseError{Body: body, Err: err}
	}
	return reply, nil
}

// image fetches an image endpoint. The retry transport already re-requests
// non-200 and non-image responses; the checks here classify the final one.
func (c *Client) image(ctx context.Context, action string, args *Args) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(action, args), nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create request: %w", err)
	}

	body, statusCode, err := c.do(c.imageClient, request)
	if err != nil {
		c.logger.Error("image cannot be retrieved", "action", action, "retry", c.retry, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	if statusCode != http.StatusOK {
		c.logger.Error("image cannot be retrieved", "action", action, "retry", c.retry, "status", statusCode)
		return nil, fmt.Errorf("%w: status %d", ErrImageUnavailable, statusCode)
	}

	c.info("image type check", "action", action)
	if contentType := retry.SniffContentType(body); !slices.Contains(imageContentTypes, contentType) {
		c.logger.Error("image cannot be retrieved: incorrect format", "action", action, "retry", c.retry, "contentType", contentType)
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, contentType)
	}

	c.info("image retrieved", "action", action, "bytes", len(body))
	return body, nil
}

func (c *Client) do(client *http.Client, request *http.Request) ([]byte, int, error) {
	response, err := client.Do(request)
	if err != nil {
		return nil, 0, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, xerrors.Errorf("failed to read response body: %w", err)
	}
	return body, response.StatusCode, nil
}

func (c *Client) info(msg string, args ...any) {
	if c.Debug() {
		c.logger.Info(msg, args...)
	}
}
