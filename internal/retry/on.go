package retry

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

type On struct {
	_4xx           bool
	_5xx           bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	notOK          bool
	statusCodes    []int
	contentTypes   []string
}

// NewDefaultRetryOn retries any transport failure and any status >= 400,
// which is how the Browshot API reports both throttling and transient errors.
func NewDefaultRetryOn() *On {
	return &On{
		_4xx:           true,
		_5xx:           true,
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		statusCodes:    []int{},
	}
}

func NewRetryOnFromString(s string) (*On, error) {
	o := &On{}
	for _, s := range strings.Split(s, ",") {
		switch s {
		case "4xx":
			o._4xx = true
		case "5xx":
			o._5xx = true
		case "gateway-error":
			o.gatewayError = true
		case "connect-failure":
			o.connectFailure = true
		case "retriable-4xx":
			o.retriable4xx = true
		case "not-ok":
			o.notOK = true
		default:
			statusCode, err := strconv.Atoi(s)
			if err != nil {
				return nil, xerrors.Errorf("invalid retryOn: %s", s)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

// WithContentTypes returns a copy of o that also retries 200 responses whose
// sniffed media type is not one of types.
func (o *On) WithContentTypes(types ...string) *On {
	c := *o
	c.statusCodes = slices.Clone(o.statusCodes)
	c.contentTypes = slices.Clone(types)
	return &c
}

// CheckResponse may replace response.Body with a reader that replays the
// sniffed prefix, so callers must read the body after calling it.
func (o *On) CheckResponse(response *http.Response) bool {
	if (o._4xx && response.StatusCode >= 400 && response.StatusCode < 500) ||
		(o._5xx && response.StatusCode >= 500 && response.StatusCode < 600) ||
		(o.gatewayError && response.StatusCode >= 502 && response.StatusCode < 505) ||
		(o.retriable4xx && response.StatusCode == 409) ||
		(o.notOK && response.StatusCode != http.StatusOK) {
		return true
	}

	for _, i := range o.statusCodes {
		if i == response.StatusCode {
			return true
		}
	}

	if len(o.contentTypes) > 0 && response.StatusCode == http.StatusOK {
		return !slices.Contains(o.contentTypes, peekContentType(response))
	}

	return false
}

func (o *On) CheckError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if o.connectFailure {
		return true
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	if (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) {
		return o._5xx
	}
	return false
}

// SniffContentType returns the media type of data without parameters.
func SniffContentType(data []byte) string {
	mediaType, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return strings.TrimSpace(mediaType)
}

func peekContentType(response *http.Response) string {
	if response.Body == nil || response.Body == http.NoBody {
		return SniffContentType(nil)
	}

	reader := bufio.NewReaderSize(response.Body, sniffLen)
	head, _ := reader.Peek(sniffLen)
	response.Body = struct {
		io.Reader
		io.Closer
	}{reader, response.Body}

	return SniffContentType(head)
}
