package retry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

// Transport re-issues a request while RetryOn matches the outcome and
// RetryStrategy has budget left. Requests with a body are replayed through
// GetBody, so every attempt gets a fresh reader.
type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
	Logger        *slog.Logger
	// Attempts counts every round trip, including the first one.
	Attempts metric.Int64Counter
}

type contextKey string

const retryCountContextKey contextKey = "retryCountKey"

func getRetryCount(ctx context.Context) uint {
	v := ctx.Value(retryCountContextKey)

	i, ok := v.(uint)
	if !ok {
		return 0
	}

	return i
}

func setRetryCount(ctx context.Context, retryCount uint) context.Context {
	return context.WithValue(ctx, retryCountContextKey, retryCount)
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retryCount := getRetryCount(request.Context())
	sleep, exceeded := t.retryStrategy().Sleep(retryCount)

	if t.Attempts != nil {
		t.Attempts.Add(request.Context(), 1, metric.WithAttributes(
			attribute.Key("method").String(request.Method),
			attribute.Key("endpoint").String(request.URL.Path),
			attribute.Key("retry").Bool(retryCount > 0),
		))
	}

	response, err := t.base().RoundTrip(request)
	if err != nil {
		if !exceeded && t.RetryOn != nil && t.RetryOn.CheckError(err) {
			t.logger().Warn("retrying request", "method", request.Method, "path", request.URL.Path, "retry", retryCount+1, "error", err)
			return t.retry(request, retryCount, sleep)
		}
		return nil, err
	}
	if !exceeded && t.RetryOn != nil && t.RetryOn.CheckResponse(response) {
		t.logger().Warn("retrying request", "method", request.Method, "path", request.URL.Path, "retry", retryCount+1, "status", response.StatusCode)
		drain(response)
		return t.retry(request, retryCount, sleep)
	}
	return response, nil
}

func (t *Transport) retry(request *http.Request, retryCount uint, sleep time.Duration) (*http.Response, error) {
	ctx := request.Context()
	if sleep > 0 {
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := request.WithContext(setRetryCount(ctx, retryCount+1))
	if request.GetBody != nil {
		body, err := request.GetBody()
		if err != nil {
			return nil, xerrors.Errorf("failed to rewind request body: %w", err)
		}
		next.Body = body
	}
	return t.RoundTrip(next)
}

func drain(response *http.Response) {
	if response.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Transport) CancelRequest(request *http.Request) {
	type canceler interface {
		CancelRequest(*http.Request)
	}
	if cr, ok := t.base().(canceler); ok {
		cr.CancelRequest(request)
	}
}
