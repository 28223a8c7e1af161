package schedule

import (
	"browshot/internal/capture"
	"browshot/internal/retry"
	"browshot/internal/storage"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var (
	ErrNotFound       = errors.New("schedule not found")
	ErrAlreadyRunning = errors.New("schedule is already running")
)

type Status struct {
	Schedule

	Running          bool       `json:"running"`
	LastRunTime      *time.Time `json:"lastRunTime,omitempty"`
	NextRunTime      *time.Time `json:"nextRunTime,omitempty"`
	LastScreenshotID int64      `json:"lastScreenshotID,omitempty"`
	ScreenshotURL    string     `json:"screenshotURL,omitempty"`
	HTMLURL          string     `json:"htmlURL,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
}

type entry struct {
	schedule Schedule
	id       cron.EntryID
	status   Status
}

type SchedulerConfig struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	// Timeout bounds a single run, polling included.
	Timeout time.Duration
}

type Scheduler struct {
	capturer capture.Capturer
	storage  storage.Storage
	logger   *slog.Logger
	timeout  time.Duration
	cron     *cron.Cron

	mu      sync.RWMutex
	names   []string
	entries map[string]*entry

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewScheduler(ctx context.Context, capturer capture.Capturer, s storage.Storage, config *Config, c SchedulerConfig) (*Scheduler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registerer := c.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "browshot_schedule_runs_total",
		Help: "Number of scheduled captures by result.",
	}, []string{"schedule", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "browshot_schedule_run_duration_seconds",
		Help:    "Duration of scheduled captures, polling included.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"schedule"})
	for _, collector := range []prometheus.Collector{runs, duration} {
		if err := registerer.Register(collector); err != nil {
			return nil, xerrors.Errorf("failed to register metrics: %w", err)
		}
	}

	scheduler := &Scheduler{
		capturer: capturer,
		storage:  s,
		logger:   logger,
		timeout:  timeout,
		cron:     cron.New(cron.WithParser(parser)),
		entries:  make(map[string]*entry, len(config.Schedules)),
		runs:     runs,
		duration: duration,
	}

	for _, sc := range config.Schedules {
		name := sc.Name
		id, err := scheduler.cron.AddFunc(sc.Schedule, func() {
			if _, err := scheduler.Run(context.Background(), name); err != nil {
				scheduler.logger.Error("scheduled capture failed", "schedule", name, "error", err)
			}
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to add schedule %s: %w", name, err)
		}
		scheduler.names = append(scheduler.names, name)
		scheduler.entries[name] = &entry{
			schedule: sc,
			id:       id,
			status:   Status{Schedule: sc},
		}
	}

	return scheduler, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]Status, 0, len(s.names))
	for _, name := range s.names {
		statuses = append(statuses, s.statusLocked(s.entries[name]))
	}
	return statuses
}

func (s *Scheduler) Get(name string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return Status{}, ErrNotFound
	}
	return s.statusLocked(e), nil
}

func (s *Scheduler) statusLocked(e *entry) Status {
	status := e.status
	status.Args = maps.Clone(e.status.Args)
	status.ThumbnailArgs = maps.Clone(e.status.ThumbnailArgs)
	if next := s.cron.Entry(e.id).Next; !next.IsZero() {
		status.NextRunTime = &next
	}
	return status
}

// Run captures the schedule's URL now and stores the artifacts. Only one run
// per schedule is in flight at a time.
func (s *Scheduler) Run(ctx context.Context, name string) (Status, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return Status{}, ErrNotFound
	}
	if e.status.Running {
		s.mu.Unlock()
		return Status{}, ErrAlreadyRunning
	}
	e.status.Running = true
	s.mu.Unlock()

	start := time.Now()
	screenshotID, screenshotURL, htmlURL, err := s.run(ctx, e.schedule)
	s.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	e.status.Running = false
	e.status.LastRunTime = &start
	if err != nil {
		s.runs.WithLabelValues(name, "failure").Inc()
		e.status.LastError = err.Error()
		return s.statusLocked(e), err
	}

	s.runs.WithLabelValues(name, "success").Inc()
	e.status.LastError = ""
	e.status.LastScreenshotID = screenshotID
	e.status.ScreenshotURL = screenshotURL
	e.status.HTMLURL = htmlURL
	s.logger.Info("capture stored", "schedule", name, "screenshotID", screenshotID, "screenshotURL", screenshotURL)
	return s.statusLocked(e), nil
}

func (s *Scheduler) run(ctx context.Context, sc Schedule) (int64, string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.capturer.Capture(ctx, sc.URL, sc.captureOptions())
	if err != nil {
		return 0, "", "", xerrors.Errorf("failed to capture %s: %w", sc.URL, err)
	}

	timestamp := time.Now().Format("20060102150405")

	h := sha256.New()
	h.Write([]byte(sc.URL))
	urlHash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	baseKey := fmt.Sprintf("Screenshot/%s/%s/%s", sc.Name, urlHash, timestamp)

	var screenshotURL string
	var htmlURL string
	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			imageKey := baseKey + extension(result.Screenshot)
			path, err := s.storage.Put(ctx, imageKey, result.Screenshot)
			if err != nil {
				return xerrors.Errorf("failed to upload screenshot: %w", err)
			}
			screenshotURL = path
			return nil
		})

		if result.HTML != nil {
			eg.Go(func() error {
				htmlKey := baseKey + ".html"
				path, err := s.storage.Put(ctx, htmlKey, result.HTML)
				if err != nil {
					return xerrors.Errorf("failed to upload HTML: %w", err)
				}
				htmlURL = path
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return 0, "", "", err
		}
	}

	return result.ScreenshotID, screenshotURL, htmlURL, nil
}

func extension(image []byte) string {
	switch retry.SniffContentType(image) {
	case "image/png":
		return ".png"
	default:
		return ".jpeg"
	}
}
