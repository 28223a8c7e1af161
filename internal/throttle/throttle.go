package throttle

import (
	"net/http"

	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

// Transport waits on Limiter before every round trip. Retries issued by an
// outer retry.Transport pass through here too, so they share the budget.
type Transport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

func NewTransport(base http.RoundTripper, limit rate.Limit, burst int) *Transport {
	if burst < 1 {
		burst = 1
	}
	return &Transport{
		Base:    base,
		Limiter: rate.NewLimiter(limit, burst),
	}
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(request.Context()); err != nil {
			if request.Body != nil {
				_ = request.Body.Close()
			}
			return nil, xerrors.Errorf("failed to wait for rate limiter: %w", err)
		}
	}
	return t.base().RoundTrip(request)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
