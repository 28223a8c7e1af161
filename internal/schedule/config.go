package schedule

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/capture"
	"maps"
	"os"
	"slices"

	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule captures URL every time Schedule fires, e.g.
//
//	- name: homepage
//	  url: https://example.com/
//	  schedule: "0 * * * *"
//	  instanceID: 65
//	  html: true
//	  args:
//	    size: page
type Schedule struct {
	Name          string            `yaml:"name" json:"name"`
	URL           string            `yaml:"url" json:"url"`
	Schedule      string            `yaml:"schedule" json:"schedule"`
	InstanceID    int64             `yaml:"instanceID,omitempty" json:"instanceID,omitempty"`
	HTML          bool              `yaml:"html,omitempty" json:"html,omitempty"`
	Args          map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
	ThumbnailArgs map[string]string `yaml:"thumbnailArgs,omitempty" json:"thumbnailArgs,omitempty"`
}

type Config struct {
	Schedules []Schedule `yaml:"schedules"`
}

func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, xerrors.Errorf("failed to parse schedules: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Schedules))
	for i, s := range c.Schedules {
		if s.Name == "" {
			return xerrors.Errorf("schedule #%d: missing name", i)
		}
		if _, ok := seen[s.Name]; ok {
			return xerrors.Errorf("schedule %s: duplicated name", s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.URL == "" {
			return xerrors.Errorf("schedule %s: missing url", s.Name)
		}
		if _, err := parser.Parse(s.Schedule); err != nil {
			return xerrors.Errorf("schedule %s: invalid schedule %q: %w", s.Name, s.Schedule, err)
		}
	}
	return nil
}

func (s *Schedule) captureOptions() capture.CaptureOptions {
	return capture.CaptureOptions{
		InstanceID:    s.InstanceID,
		HTML:          s.HTML,
		Args:          toArgs(s.Args),
		ThumbnailArgs: toArgs(s.ThumbnailArgs),
	}
}

func toArgs(m map[string]string) *browshotV1.Args {
	args := browshotV1.NewArgs()
	for _, key := range slices.Sorted(maps.Keys(m)) {
		args.Set(key, m[key])
	}
	return args
}
