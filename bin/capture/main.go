package main

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/capture"
	"browshot/internal/env"
	"browshot/internal/retry"
	"browshot/internal/storage"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type SnapshotResult struct {
	ScreenshotID   int64  `json:"screenshotID"`
	FinalURL       string `json:"finalURL,omitempty"`
	ScreenshotPath string `json:"screenshotPath"`
	HTMLPath       string `json:"htmlPath,omitempty"`
}

type arguments []string

func (a *arguments) String() string {
	return strings.Join(*a, ", ")
}

func (a *arguments) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	*a = append(*a, value)
	return nil
}

func (a arguments) toArgs() *browshotV1.Args {
	args := browshotV1.NewArgs()
	for _, argument := range a {
		key, value, _ := strings.Cut(argument, "=")
		args.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return args
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	var key string
	var baseURL string
	var retryCount uint
	var debug bool
	var instanceID int64
	var size string
	var html bool
	var timeout time.Duration
	var storageBackend string
	var directory string
	var s3Bucket string
	var s3EndpointURL string
	var createArgs arguments
	var thumbnailArgs arguments
	flag.StringVar(&key, "key", env.OrDefault("BROWSHOT_API_KEY", ""), "Browshot API key")
	flag.StringVar(&baseURL, "base-url", env.OrDefault("BROWSHOT_BASE_URL", browshotV1.DefaultBaseURL), "Browshot API base URL")
	flag.UintVar(&retryCount, "retry", env.OrDefault("BROWSHOT_RETRY", uint(browshotV1.DefaultRetry)), "Number of retries after a failed request")
	flag.BoolVar(&debug, "debug", env.OrDefault("BROWSHOT_DEBUG", false), "Log every request URL")
	flag.Int64Var(&instanceID, "instance-id", env.OrDefault("INSTANCE_ID", int64(12)), "Instance ID to render the page with")
	flag.StringVar(&size, "size", env.OrDefault("SIZE", "screen"), "Screenshot size (screen or page)")
	flag.BoolVar(&html, "html", env.OrDefault("HTML", true), "Also store the rendered HTML")
	flag.DurationVar(&timeout, "timeout", env.OrDefault("TIMEOUT", 5*time.Minute), "Maximum time to wait for the screenshot")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket of the s3 backend")
	flag.StringVar(&s3EndpointURL, "s3-endpoint-url", env.OrDefault("S3_ENDPOINT_URL", ""), "Endpoint of an S3 compatible server")
	flag.Var(&createArgs, "a", "Add a screenshot/create argument (can be used multiple times, e.g., -a delay=5 -a screen_width=1280)")
	flag.Var(&thumbnailArgs, "t", "Add a screenshot/thumbnail argument (can be used multiple times, e.g., -t width=640)")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("url not specified")
	}
	url := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var s storage.Storage
	var err error
	switch storageBackend {
	case "file":
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
	case "s3":
		s, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:      s3Bucket,
			EndpointURL: s3EndpointURL,
		})
	default:
		err = fmt.Errorf("unknown backend %s", storageBackend)
	}
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	config := browshotV1.DefaultConfig()
	config.Key = key
	config.BaseURL = baseURL
	config.Retry = retryCount
	config.Debug = debug
	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	config.Storage = s
	client, err := browshotV1.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	captureConfig := capture.DefaultBrowshotConfig()
	captureConfig.InstanceID = instanceID
	captureConfig.Size = size
	capturer, err := capture.NewBrowshotCapturer(ctx, client, captureConfig)
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}

	result, err := capturer.Capture(ctx, url, capture.CaptureOptions{
		HTML:          html,
		Args:          createArgs.toArgs(),
		ThumbnailArgs: thumbnailArgs.toArgs(),
	})
	if err != nil {
		log.Fatalf("Failed to capture screenshot: %v", err)
	}

	timestamp := time.Now().Format("20060102150405")

	h := sha256.New()
	h.Write([]byte(url))
	urlHash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	baseKey := fmt.Sprintf("Screenshot/capture/%s/%s", urlHash, timestamp)

	var imagePath string
	var htmlPath string

	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			imageKey := baseKey + ".png"
			if retry.SniffContentType(result.Screenshot) == "image/jpeg" {
				imageKey = baseKey + ".jpeg"
			}
			path, err := s.Put(ctx, imageKey, result.Screenshot)
			if err != nil {
				return err
			}
			imagePath = path
			return nil
		})

		if result.HTML != nil {
			eg.Go(func() error {
				htmlKey := fmt.Sprintf("%s.html", baseKey)
				path, err := s.Put(ctx, htmlKey, result.HTML)
				if err != nil {
					return err
				}
				htmlPath = path
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			log.Fatalf("Failed to upload: %v", err)
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(SnapshotResult{
		ScreenshotID:   result.ScreenshotID,
		FinalURL:       result.FinalURL,
		ScreenshotPath: imagePath,
		HTMLPath:       htmlPath,
	}); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
