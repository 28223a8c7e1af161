package main

import (
	browshotV1 "browshot/api/v1"
	"browshot/internal/env"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

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

// toArgs keeps repeated keys, so -a urls=http://a/ -a urls=http://b/ sends
// two url parameters.
func (a arguments) toArgs() *browshotV1.Args {
	args := browshotV1.NewArgs()
	for _, argument := range a {
		key, value, _ := strings.Cut(argument, "=")
		args.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return args
}

type command struct {
	usage string
	nargs int
	run   func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

func withID(f func(ctx context.Context, id int64, args *browshotV1.Args) (browshotV1.Reply, error)) func(context.Context, *browshotV1.Client, []string, *browshotV1.Args) (any, error) {
	return func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
		id, err := parseID(positional[0])
		if err != nil {
			return nil, err
		}
		return f(ctx, id, args)
	}
}

func commands() map[string]command {
	return map[string]command{
		"account-info": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, args *browshotV1.Args) (any, error) {
			return client.AccountInfo(ctx, args)
		}},
		"instance-list": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, _ *browshotV1.Args) (any, error) {
			return client.InstanceList(ctx)
		}},
		"instance-info": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, _ *browshotV1.Args) (any, error) {
			id, err := parseID(positional[0])
			if err != nil {
				return nil, err
			}
			return client.InstanceInfo(ctx, id)
		}},
		"browser-list": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, _ *browshotV1.Args) (any, error) {
			return client.BrowserList(ctx)
		}},
		"browser-info": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, _ *browshotV1.Args) (any, error) {
			id, err := parseID(positional[0])
			if err != nil {
				return nil, err
			}
			return client.BrowserInfo(ctx, id)
		}},
		"screenshot-create": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, args *browshotV1.Args) (any, error) {
			return client.ScreenshotCreate(ctx, args)
		}},
		"screenshot-info": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.ScreenshotInfo)(ctx, client, positional, args)
		}},
		"screenshot-list": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, args *browshotV1.Args) (any, error) {
			return client.ScreenshotList(ctx, args)
		}},
		"screenshot-search": {"<url>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return client.ScreenshotSearch(ctx, positional[0], args)
		}},
		"screenshot-host": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.ScreenshotHost)(ctx, client, positional, args)
		}},
		"screenshot-thumbnail": {"<id> <file>", 2, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			id, err := parseID(positional[0])
			if err != nil {
				return nil, err
			}
			file, err := client.ScreenshotThumbnailFile(ctx, id, positional[1], args)
			if err != nil {
				return nil, err
			}
			return map[string]string{"file": file}, nil
		}},
		"screenshot-share": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.ScreenshotShare)(ctx, client, positional, args)
		}},
		"screenshot-delete": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.ScreenshotDelete)(ctx, client, positional, args)
		}},
		"screenshot-html": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, _ *browshotV1.Args) (any, error) {
			id, err := parseID(positional[0])
			if err != nil {
				return nil, err
			}
			return client.ScreenshotHTML(ctx, id)
		}},
		"screenshot-multiple": {"", 0, func(ctx context.Context, client *browshotV1.Client, _ []string, args *browshotV1.Args) (any, error) {
			return client.ScreenshotMultiple(ctx, args)
		}},
		"batch-create": {"<file> <instance id>", 2, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			instanceID, err := parseID(positional[1])
			if err != nil {
				return nil, err
			}
			return client.BatchCreate(ctx, positional[0], instanceID, args)
		}},
		"batch-info": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.BatchInfo)(ctx, client, positional, args)
		}},
		"crawl-create": {"<domain> <url> <instance id>", 3, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			instanceID, err := parseID(positional[2])
			if err != nil {
				return nil, err
			}
			return client.CrawlCreate(ctx, positional[0], positional[1], instanceID, args)
		}},
		"crawl-info": {"<id>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return withID(client.CrawlInfo)(ctx, client, positional, args)
		}},
		"simple": {"<file>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return client.SimpleFile(ctx, positional[0], args)
		}},
		"url": {"<action>", 1, func(ctx context.Context, client *browshotV1.Client, positional []string, args *browshotV1.Args) (any, error) {
			return client.URL(positional[0], args), nil
		}},
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [arguments]\n\nCommands:\n", os.Args[0])
	cs := commands()
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s %s\n", name, cs[name].usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	var key string
	var baseURL string
	var retryCount uint
	var debug bool
	var timeout time.Duration
	var rateLimit float64
	var apiArgs arguments
	flag.StringVar(&key, "key", env.OrDefault("BROWSHOT_API_KEY", ""), "Browshot API key")
	flag.StringVar(&baseURL, "base-url", env.OrDefault("BROWSHOT_BASE_URL", browshotV1.DefaultBaseURL), "Browshot API base URL")
	flag.UintVar(&retryCount, "retry", env.OrDefault("BROWSHOT_RETRY", uint(browshotV1.DefaultRetry)), "Number of retries after a failed request")
	flag.BoolVar(&debug, "debug", env.OrDefault("BROWSHOT_DEBUG", false), "Log every request URL")
	flag.DurationVar(&timeout, "timeout", env.OrDefault("TIMEOUT", 2*time.Minute), "Timeout of the whole command")
	flag.Float64Var(&rateLimit, "rate-limit", env.OrDefault("RATE_LIMIT", 0.0), "Maximum API requests per second, 0 for no limit")
	flag.Var(&apiArgs, "a", "Add an API argument (can be used multiple times, e.g., -a url=https://example.com/ -a instance_id=12)")
	flag.Usage = usage

	flag.Parse()

	positional := flag.Args()
	if len(positional) == 0 {
		usage()
		os.Exit(2)
	}
	c, ok := commands()[positional[0]]
	if !ok || len(positional)-1 != c.nargs {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	config := browshotV1.DefaultConfig()
	config.Key = key
	config.BaseURL = baseURL
	config.Retry = retryCount
	config.Debug = debug
	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	config.RateLimit = rate.Limit(rateLimit)
	config.RateBurst = 1
	client, err := browshotV1.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}

	result, err := c.run(ctx, client, positional[1:], apiArgs.toArgs())
	if s, ok := result.(string); ok && err == nil {
		fmt.Println(s)
		return
	}
	if result != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			log.Fatalf("failed to encode result: %v", err)
		}
	}
	if err != nil {
		log.Fatalf("%s failed: %v", positional[0], err)
	}
}
