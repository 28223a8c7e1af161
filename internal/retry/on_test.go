package retry_test

import (
	"browshot/internal/retry"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustRetryOn(t *testing.T, s string) *retry.On {
	t.Helper()

	o, err := retry.NewRetryOnFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestCheckResponse(t *testing.T) {
	type in struct {
		first *http.Response
	}

	type want struct {
		first bool
	}

	tests := []struct {
		name     string
		receiver *retry.On
		in       in
		want     want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "5xx"),
			in{&http.Response{StatusCode: 500}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "5xx"),
			in{&http.Response{StatusCode: 404}},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "4xx"),
			in{&http.Response{StatusCode: 404}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "gateway-error"),
			in{&http.Response{StatusCode: 502}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "gateway-error"),
			in{&http.Response{StatusCode: 500}},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "retriable-4xx"),
			in{&http.Response{StatusCode: 409}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "not-ok"),
			in{&http.Response{StatusCode: 204}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "500"),
			in{&http.Response{StatusCode: 500}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.NewDefaultRetryOn(),
			in{&http.Response{StatusCode: 400}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.NewDefaultRetryOn(),
			in{&http.Response{StatusCode: 302}},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "not-ok").WithContentTypes("image/png", "image/jpeg"),
			in{&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("GIF89a\x01\x00\x01\x00"))}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "not-ok").WithContentTypes("image/png", "image/jpeg"),
			in{&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("\xff\xd8\xff\xe0\x00\x10JFIF"))}},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "not-ok").WithContentTypes("image/png"),
			in{&http.Response{StatusCode: 200}},
			want{true},
		},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := tt.receiver
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := receiver.CheckResponse(in.first)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckResponseKeepsBody(t *testing.T) {
	t.Parallel()

	jpeg := "\xff\xd8\xff\xe0\x00\x10JFIF" + strings.Repeat("x", 1024)
	response := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(jpeg))}
	if mustRetryOn(t, "not-ok").WithContentTypes("image/jpeg").CheckResponse(response) {
		t.Fatal("jpeg body should be accepted")
	}

	got, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(jpeg, string(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCheckError(t *testing.T) {
	type in struct {
		first error
	}

	type want struct {
		first bool
	}

	tests := []struct {
		name     string
		receiver *retry.On
		in       in
		want     want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "5xx"),
			in{io.EOF},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "5xx"),
			in{&net.DNSError{IsTemporary: true}},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "5xx"),
			in{errors.New("")},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "connect-failure"),
			in{errors.New("connection refused")},
			want{true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "connect-failure"),
			in{context.Canceled},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "connect-failure"),
			in{fmt.Errorf("dial: %w", context.DeadlineExceeded)},
			want{false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			mustRetryOn(t, "gateway-error"),
			in{&net.DNSError{IsTemporary: true}},
			want{false},
		},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := tt.receiver
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := receiver.CheckError(in.first)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewRetryOnFromStringRejectsUnknownToken(t *testing.T) {
	t.Parallel()

	if _, err := retry.NewRetryOnFromString("connect-failure,sometimes"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSniffContentType(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff("image/png", retry.SniffContentType(pngHeader)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("text/html", retry.SniffContentType([]byte("<html><body>error</body></html>"))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
