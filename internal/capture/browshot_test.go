package capture_test

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/capture"
	"browshot/internal/retry"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var pngImage = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"

type fakeAPI struct {
	mu       sync.Mutex
	statuses []string
	infos    int
	queries  map[string]string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.queries[r.URL.Path] = r.URL.RawQuery
	}
	mux.HandleFunc("/api/v1/screenshot/create", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		fmt.Fprintf(w, `{"id":5,"status":"in_queue","url":%q}`, r.URL.Query().Get("url"))
	})
	mux.HandleFunc("/api/v1/screenshot/info", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		status := f.statuses[min(f.infos, len(f.statuses)-1)]
		f.infos++
		f.mu.Unlock()
		if status == "error" {
			fmt.Fprint(w, `{"id":5,"status":"error","error":"Domain not found"}`)
			return
		}
		fmt.Fprintf(w, `{"id":5,"status":%q,"final_url":"http://example.com/home"}`, status)
	})
	mux.HandleFunc("/api/v1/screenshot/thumbnail", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, pngImage)
	})
	mux.HandleFunc("/api/v1/screenshot/html", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, "<html><body>home</body></html>")
	})
	return mux
}

func newCapturer(t *testing.T, api *fakeAPI, strategy retry.Strategy) capture.Capturer {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	config := browshotV1.DefaultConfig()
	config.Key = "key"
	config.BaseURL = server.URL + "/api/v1"
	config.Retry = 0
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := browshotV1.NewClient(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	c := capture.DefaultBrowshotConfig()
	c.PollStrategy = strategy
	capturer, err := capture.NewBrowshotCapturer(context.Background(), client, c)
	if err != nil {
		t.Fatal(err)
	}
	return capturer
}

func TestBrowshotCapture(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []string{"processing", "processing", "finished"},
		queries:  map[string]string{},
	}
	capturer := newCapturer(t, api, retry.NewImmediate(10))

	got, err := capturer.Capture(context.Background(), "http://example.com/", capture.CaptureOptions{
		InstanceID:    65,
		HTML:          true,
		Args:          browshotV1.NewArgs().Set("delay", 5),
		ThumbnailArgs: browshotV1.NewArgs().Set("width", 320),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := &capture.CaptureResult{
		ScreenshotID: 5,
		FinalURL:     "http://example.com/home",
		Screenshot:   []byte(pngImage),
		HTML:         []byte("<html><body>home</body></html>"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	wantQueries := map[string]string{
		"/api/v1/screenshot/create":    "key=key&delay=5&url=http%3A%2F%2Fexample.com%2F&instance_id=65&size=screen",
		"/api/v1/screenshot/info":      "key=key&id=5",
		"/api/v1/screenshot/thumbnail": "key=key&width=320&id=5",
		"/api/v1/screenshot/html":      "key=key&id=5",
	}
	if diff := cmp.Diff(wantQueries, api.queries); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, api.infos); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBrowshotCaptureWithoutHTML(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []string{"finished"},
		queries:  map[string]string{},
	}
	capturer := newCapturer(t, api, retry.NewImmediate(10))

	got, err := capturer.Capture(context.Background(), "http://example.com/", capture.CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.HTML != nil {
		t.Errorf("HTML should not be retrieved: %s", got.HTML)
	}
	if _, ok := api.queries["/api/v1/screenshot/html"]; ok {
		t.Error("screenshot/html should not be called")
	}
	if diff := cmp.Diff("key=key&url=http%3A%2F%2Fexample.com%2F&instance_id=12&size=screen", api.queries["/api/v1/screenshot/create"]); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBrowshotCapturePollTimeout(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []string{"processing"},
		queries:  map[string]string{},
	}
	capturer := newCapturer(t, api, retry.NewImmediate(2))

	_, err := capturer.Capture(context.Background(), "http://example.com/", capture.CaptureOptions{})
	if !errors.Is(err, capture.ErrPollTimeout) {
		t.Errorf("expected ErrPollTimeout, got %v", err)
	}
	if diff := cmp.Diff(2, api.infos); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBrowshotCaptureScreenshotError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []string{"processing", "error"},
		queries:  map[string]string{},
	}
	capturer := newCapturer(t, api, retry.NewImmediate(10))

	_, err := capturer.Capture(context.Background(), "http://example.com/", capture.CaptureOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := api.queries["/api/v1/screenshot/thumbnail"]; ok {
		t.Error("screenshot/thumbnail should not be called")
	}
}

func TestBrowshotCaptureCanceled(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []string{"processing"},
		queries:  map[string]string{},
	}
	capturer := newCapturer(t, api, retry.NewExponentialBackOff(time.Hour, time.Hour, 10, func(i int64) int64 { return i }))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			api.mu.Lock()
			_, created := api.queries["/api/v1/screenshot/create"]
			api.mu.Unlock()
			if created {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	_, err := capturer.Capture(ctx, "http://example.com/", capture.CaptureOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
