package v1

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/xerrors"
)

type SimpleResult struct {
	Code int
	Data []byte
}

type SimpleFileResult struct {
	Code int
	// File is where the image was stored, empty when nothing was saved.
	File string
}

// Simple requests and downloads a screenshot in a single call. It makes one
// attempt and returns whatever status and body the service sent.
func (c *Client) Simple(ctx context.Context, args *Args) (*SimpleResult, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("simple", args), nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create request: %w", err)
	}

	body, statusCode, err := c.do(c.plainClient, request)
	if err != nil {
		c.logger.Error("simple request failed", "error", err)
		return nil, xerrors.Errorf("failed to request simple: %w", err)
	}
	return &SimpleResult{Code: statusCode, Data: body}, nil
}

// SimpleFile is Simple followed by saving the image to file. Nothing is
// saved unless the status is 200 and the body is not empty.
func (c *Client) SimpleFile(ctx context.Context, file string, args *Args) (*SimpleFileResult, error) {
	if file == "" {
		return &SimpleFileResult{}, c.invalid("Missing file")
	}

	result, err := c.Simple(ctx, args)
	if err != nil {
		return &SimpleFileResult{}, err
	}
	if result.Code != http.StatusOK {
		return &SimpleFileResult{Code: result.Code}, fmt.Errorf("%w: status %d", ErrImageUnavailable, result.Code)
	}
	if len(result.Data) == 0 {
		c.logger.Error("No image returned")
		return &SimpleFileResult{Code: result.Code}, fmt.Errorf("%w: empty body", ErrImageUnavailable)
	}

	location, err := c.storage.Put(ctx, file, result.Data)
	if err != nil {
		c.logger.Error("failed to save screenshot", "file", file, "error", err)
		return &SimpleFileResult{Code: result.Code}, xerrors.Errorf("failed to save screenshot: %w", err)
	}
	return &SimpleFileResult{Code: result.Code, File: location}, nil
}
