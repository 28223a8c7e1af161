package routes_test

import (
	"browshot/internal/capture"
	"browshot/internal/routes"
	"browshot/internal/schedule"
	"browshot/internal/storage"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

type capturerMock struct {
	fakeCapture func(ctx context.Context, url string, captureOptions capture.CaptureOptions) (*capture.CaptureResult, error)
}

func (m *capturerMock) Capture(ctx context.Context, url string, captureOptions capture.CaptureOptions) (*capture.CaptureResult, error) {
	return m.fakeCapture(ctx, url, captureOptions)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	config, err := schedule.ParseConfig([]byte(`
schedules:
  - name: homepage
    url: https://example.com/
    schedule: "@hourly"
    html: true
  - name: broken
    url: https://broken.example.com/
    schedule: "@daily"
`))
	if err != nil {
		t.Fatal(err)
	}

	capturer := &capturerMock{
		fakeCapture: func(ctx context.Context, url string, captureOptions capture.CaptureOptions) (*capture.CaptureResult, error) {
			if url == "https://broken.example.com/" {
				return nil, errors.New("Domain not found")
			}
			return &capture.CaptureResult{
				ScreenshotID: 7,
				Screenshot:   pngImage,
				HTML:         []byte("<html></html>"),
			}, nil
		},
	}
	scheduler, err := schedule.NewScheduler(ctx, capturer, s, config, schedule.SchedulerConfig{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/schedules", routes.ListSchedules(scheduler))
	mux.Handle("GET /api/schedules/{name}", routes.GetSchedule(scheduler))
	mux.Handle("POST /api/schedules/{name}/run", routes.RunSchedule(scheduler))
	mux.Handle("GET /api/schedules/{name}/artifacts", routes.ListArtifacts(scheduler, s))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method string, url string) (int, []byte) {
	t.Helper()

	request, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	return response.StatusCode, body
}

func TestRoutesStatusCode(t *testing.T) {
	type in struct {
		method string
		path   string
	}

	tests := []struct {
		name string
		in   in
		want int
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodGet, "/api/schedules"},
			http.StatusOK,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodGet, "/api/schedules/homepage"},
			http.StatusOK,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodGet, "/api/schedules/missing"},
			http.StatusNotFound,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodPost, "/api/schedules/missing/run"},
			http.StatusNotFound,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodPost, "/api/schedules/broken/run"},
			http.StatusBadGateway,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodGet, "/api/schedules/homepage/run"},
			http.StatusMethodNotAllowed,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{http.MethodGet, "/api/schedules/missing/artifacts"},
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := newServer(t)
			got, _ := do(t, in.method, server.URL+in.path)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunScheduleThenListArtifacts(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	statusCode, body := do(t, http.MethodGet, server.URL+"/api/schedules/homepage/artifacts")
	if diff := cmp.Diff(http.StatusOK, statusCode); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("{}", string(body)); diff != "" {
		t.Errorf("nothing is stored before the first run (-want +got):\n%s", diff)
	}

	statusCode, body = do(t, http.MethodPost, server.URL+"/api/schedules/homepage/run")
	if diff := cmp.Diff(http.StatusOK, statusCode); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	var status schedule.Status
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Name != "homepage" || status.LastScreenshotID != 7 || status.ScreenshotURL == "" || status.LastRunTime == nil {
		t.Errorf("unexpected status %s", body)
	}

	statusCode, body = do(t, http.MethodGet, server.URL+"/api/schedules/homepage/artifacts")
	if diff := cmp.Diff(http.StatusOK, statusCode); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	var got routes.ArtifactsResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	want := routes.ArtifactsResponse{
		ScreenshotID: 7,
		Screenshot:   base64.StdEncoding.EncodeToString(pngImage),
		HTML:         base64.StdEncoding.EncodeToString([]byte("<html></html>")),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestListSchedules(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	statusCode, body := do(t, http.MethodGet, server.URL+"/api/schedules")
	if diff := cmp.Diff(http.StatusOK, statusCode); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	var statuses []schedule.Status
	if err := json.Unmarshal(body, &statuses); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, status := range statuses {
		names = append(names, status.Name)
	}
	if diff := cmp.Diff([]string{"homepage", "broken"}, names); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
