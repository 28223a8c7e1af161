package schedule_test

import (
	"browshot/internal/schedule"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	got, err := schedule.ParseConfig([]byte(`
schedules:
  - name: homepage
    url: https://example.com/
    schedule: "0 * * * *"
    instanceID: 65
    html: true
    args:
      size: page
      delay: "5"
    thumbnailArgs:
      width: "640"
  - name: daily
    url: https://example.org/
    schedule: "@daily"
`))
	if err != nil {
		t.Fatal(err)
	}

	want := &schedule.Config{
		Schedules: []schedule.Schedule{
			{
				Name:          "homepage",
				URL:           "https://example.com/",
				Schedule:      "0 * * * *",
				InstanceID:    65,
				HTML:          true,
				Args:          map[string]string{"size": "page", "delay": "5"},
				ThumbnailArgs: map[string]string{"width": "640"},
			},
			{
				Name:     "daily",
				URL:      "https://example.org/",
				Schedule: "@daily",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"schedules:\n  - url: https://example.com/\n    schedule: '@hourly'\n",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"schedules:\n  - name: a\n    schedule: '@hourly'\n",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"schedules:\n  - name: a\n    url: https://example.com/\n    schedule: 'every minute'\n",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"schedules:\n  - name: a\n    url: https://example.com/\n    schedule: '@hourly'\n  - name: a\n    url: https://example.org/\n    schedule: '@hourly'\n",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"schedules: [",
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := schedule.ParseConfig([]byte(in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
