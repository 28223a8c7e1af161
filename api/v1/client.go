// Package v1 is a client for the Browshot screenshot API
// (https://browshot.com/api/documentation). Method names follow the API
// endpoints: screenshot/create is ScreenshotCreate, instance/list is
// InstanceList, and request arguments are passed through unchanged.
package v1

import (
	"browshot/internal/retry"
	"browshot/internal/storage"
	"browshot/internal/throttle"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

const (
	// APIVersion is the API version handled by this package. Newer minor
	// versions usually work as long as arguments are passed through.
	APIVersion     = "1.22"
	DefaultBaseURL = "https://api.browshot.com/api/v1"
	DefaultRetry   = 3
)

// Storage receives downloaded images. storage.Storage satisfies it.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

type Config struct {
	Key     string
	BaseURL string
	Debug   bool
	// Retry is the number of retries after the first attempt.
	Retry uint

	// Transport performs single attempts; http.DefaultTransport when nil.
	Transport http.RoundTripper
	Logger    *slog.Logger
	// Storage persists files written by ScreenshotThumbnailFile and
	// SimpleFile; local files relative to the working directory when nil.
	Storage Storage
	// RateLimit throttles outgoing attempts when positive.
	RateLimit rate.Limit
	RateBurst int
	// Meter records attempt counts; the global meter provider when nil.
	Meter metric.Meter
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Retry:   DefaultRetry,
	}
}

type Client struct {
	mu      sync.RWMutex
	key     string
	baseURL string
	debug   bool

	retry   uint
	logger  *slog.Logger
	storage Storage

	// replyClient retries transport errors and statuses >= 400.
	replyClient *http.Client
	// imageClient retries transport errors, statuses != 200 and bodies
	// that are not PNG or JPEG.
	imageClient *http.Client
	// plainClient issues a single attempt.
	plainClient *http.Client
}

func NewClient(ctx context.Context, c Config) (*Client, error) {
	baseURL, err := normalizeBaseURL(c.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := c.Storage
	if s == nil {
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{})
		if err != nil {
			return nil, xerrors.Errorf("failed to create file storage: %w", err)
		}
	}

	meter := c.Meter
	if meter == nil {
		meter = otel.Meter("browshot")
	}
	attempts, err := meter.Int64Counter("browshot_client_attempts",
		metric.WithDescription("Number of HTTP attempts sent to the Browshot API, retries included."),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}

	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if c.RateLimit > 0 {
		base = throttle.NewTransport(base, c.RateLimit, c.RateBurst)
	}
	base = otelhttp.NewTransport(base, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return r.Method + " " + strings.TrimPrefix(r.URL.Path, "/")
	}))

	imageRetryOn, err := retry.NewRetryOnFromString("connect-failure,not-ok")
	if err != nil {
		return nil, err
	}

	return &Client{
		key:     c.Key,
		baseURL: baseURL,
		debug:   c.Debug,
		retry:   c.Retry,
		logger:  logger,
		storage: s,
		replyClient: &http.Client{
			Transport: &retry.Transport{
				Base:          base,
				RetryStrategy: retry.NewImmediate(c.Retry),
				RetryOn:       retry.NewDefaultRetryOn(),
				Logger:        logger,
				Attempts:      attempts,
			},
		},
		imageClient: &http.Client{
			Transport: &retry.Transport{
				Base:          base,
				RetryStrategy: retry.NewImmediate(c.Retry),
				RetryOn:       imageRetryOn.WithContentTypes(imageContentTypes...),
				Logger:        logger,
				Attempts:      attempts,
			},
		},
		plainClient: &http.Client{
			Transport: &retry.Transport{
				Base:     base,
				Logger:   logger,
				Attempts: attempts,
			},
		},
	}, nil
}

func normalizeBaseURL(base string) (string, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", xerrors.Errorf("invalid base URL %s: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", xerrors.Errorf("invalid base URL %s: an absolute http(s) URL is required", base)
	}
	return strings.TrimRight(base, "/"), nil
}

func (c *Client) SetKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

func (c *Client) SetDebug(debug bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = debug
}

// SetBaseURL changes the API endpoint, which is only useful with private
// servers. An empty base restores DefaultBaseURL.
func (c *Client) SetBaseURL(base string) error {
	baseURL, err := normalizeBaseURL(base)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	return nil
}

func (c *Client) Debug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Retry returns the number of retries after the first attempt.
func (c *Client) Retry() uint {
	return c.retry
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key, c.baseURL
}
