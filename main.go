package main

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/capture"
	"browshot/internal/env"
	"browshot/internal/runnable"
	"browshot/internal/schedule"
	"browshot/internal/storage"
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	var key string
	var baseURL string
	var retry uint
	var debug bool
	var schedules string
	var instanceID int64
	var storageBackend string
	var directory string
	var s3Bucket string
	var s3EndpointURL string
	var rateLimit float64
	var rateBurst int
	flag.StringVar(&key, "key", env.OrDefault("BROWSHOT_API_KEY", ""), "Browshot API key")
	flag.StringVar(&baseURL, "base-url", env.OrDefault("BROWSHOT_BASE_URL", browshotV1.DefaultBaseURL), "Browshot API base URL")
	flag.UintVar(&retry, "retry", env.OrDefault("BROWSHOT_RETRY", uint(browshotV1.DefaultRetry)), "Number of retries after a failed request")
	flag.BoolVar(&debug, "debug", env.OrDefault("BROWSHOT_DEBUG", false), "Log every request URL and enable pprof endpoints")
	flag.StringVar(&schedules, "schedules", env.OrDefault("SCHEDULES", "schedules.yaml"), "Path to the YAML schedule list")
	flag.Int64Var(&instanceID, "instance-id", env.OrDefault("INSTANCE_ID", int64(12)), "Default instance ID for schedules without one")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory of the file backend")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket of the s3 backend")
	flag.StringVar(&s3EndpointURL, "s3-endpoint-url", env.OrDefault("S3_ENDPOINT_URL", ""), "Endpoint of an S3 compatible server")
	flag.Float64Var(&rateLimit, "rate-limit", env.OrDefault("RATE_LIMIT", 0.0), "Maximum API requests per second, 0 for no limit")
	flag.IntVar(&rateBurst, "rate-burst", env.OrDefault("RATE_BURST", 1), "Burst size of the rate limit")

	flag.Parse()

	runnable.Debug = debug
	logger, err := runnable.NewLogger(os.Stderr)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx := context.Background()

	var s storage.Storage
	switch storageBackend {
	case "file":
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
		if err != nil {
			log.Fatalf("failed to create file storage backend: %v", err)
		}
	case "s3":
		s, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:      s3Bucket,
			EndpointURL: s3EndpointURL,
		})
		if err != nil {
			log.Fatalf("failed to create S3 storage backend: %v", err)
		}
	default:
		log.Fatalf("unknown storage backend: %s", storageBackend)
	}

	config := browshotV1.DefaultConfig()
	config.Key = key
	config.BaseURL = baseURL
	config.Retry = retry
	config.Debug = debug
	config.Logger = logger
	config.Storage = s
	config.RateLimit = rate.Limit(rateLimit)
	config.RateBurst = rateBurst
	client, err := browshotV1.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("failed to create browshot client: %v", err)
	}

	captureConfig := capture.DefaultBrowshotConfig()
	captureConfig.InstanceID = instanceID
	capturer, err := capture.NewBrowshotCapturer(ctx, client, captureConfig)
	if err != nil {
		log.Fatalf("failed to create capturer: %v", err)
	}

	scheduleConfig, err := schedule.LoadConfigFile(schedules)
	if err != nil {
		log.Fatalf("failed to load schedules: %v", err)
	}
	scheduler, err := schedule.NewScheduler(ctx, capturer, s, scheduleConfig, schedule.SchedulerConfig{
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}

	if err := runnable.NewServer(logger, scheduler, s).Start(ctx); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
