package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"visual-regression/internal/capture"
	"visual-regression/internal/config"
	"visual-regression/internal/logging"
	"visual-regression/internal/snapshot"
	"visual-regression/internal/storage"

	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
	"github.com/robfig/cron/v3"
)

type headers []string

func (h *headers) String() string {
	return strings.Join(*h, ", ")
}

func (h *headers) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func main() {
	_ = godotenv.Load()

	a := config.AssertFromEnv()
	c := config.ComparatorFromEnv()
	p := capture.DefaultPlaywrightConfig()
	var backend string
	var bucket string
	var targetsPath string
	var name string
	var suite string
	var maskSelectors string
	var schedule string
	var install bool
	var debug bool
	var headers headers
	flag.StringVar(&backend, "storage", config.EnvOrDefault("STORAGE_BACKEND", "file"), "Storage backend for baselines and reports (file or s3)")
	flag.StringVar(&a.Directory, "directory", a.Directory, "Root directory of the file backend")
	flag.StringVar(&bucket, "bucket", config.EnvOrDefault("S3_BUCKET", ""), "Bucket for the s3 backend")
	flag.StringVar(&a.BaselineLocation, "baseline-location", a.BaselineLocation, "Location of baselines inside the storage")
	flag.StringVar(&a.ReportLocation, "report-location", a.ReportLocation, "Location of report artifacts inside the storage")
	flag.Func("missing-baseline", "Policy for missing baselines (fail, ignore, skip or snapshot)", func(s string) error {
		a.MissingBaseline = config.MissingBaseline(s)
		return nil
	})
	flag.BoolVar(&a.RegenerateBaselines, "regenerate-baselines", a.RegenerateBaselines, "Overwrite baselines with the captured screenshots")
	flag.IntVar(&c.PixelSkip, "pixel-skip", c.PixelSkip, "Compare every n-th pixel")
	flag.StringVar(&c.PixelTolerance, "pixel-tolerance", c.PixelTolerance, "Per-channel tolerance (n or r,g,b)")
	flag.Float64Var(&c.MatchRatio, "match-ratio", c.MatchRatio, "Fraction of matching pixels required to pass")
	flag.StringVar(&c.ErrorColor, "error-color", c.ErrorColor, "Color of differing pixels in report images")
	flag.DurationVar(&p.Delay, "delay", config.EnvOrDefault("DELAY", p.Delay), "Delay before capturing")
	flag.IntVar(&p.ViewportWidth, "viewport-width", config.EnvOrDefault("VIEWPORT_WIDTH", p.ViewportWidth), "Viewport width in pixels")
	flag.IntVar(&p.ViewportHeight, "viewport-height", config.EnvOrDefault("VIEWPORT_HEIGHT", p.ViewportHeight), "Viewport height in pixels")
	flag.StringVar(&p.ChromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", config.EnvOrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&targetsPath, "targets", config.EnvOrDefault("TARGETS", ""), "JSON file listing the pages to capture")
	flag.StringVar(&name, "name", config.EnvOrDefault("NAME", ""), "Test name when a single URL is given as argument")
	flag.StringVar(&suite, "suite", config.EnvOrDefault("SUITE", ""), "Slash separated suite path when a single URL is given as argument")
	flag.StringVar(&maskSelectors, "mask-selectors", config.EnvOrDefault("MASK_SELECTORS", ""), "Comma-separated list of CSS selectors to mask during capture")
	flag.StringVar(&schedule, "schedule", config.EnvOrDefault("SCHEDULE", ""), "Cron schedule; runs once when empty")
	flag.BoolVar(&install, "install", config.EnvOrDefault("PLAYWRIGHT_INSTALL", false), "Install the playwright driver and chromium before capturing")
	flag.BoolVar(&debug, "debug", config.EnvOrDefault("DEBUG", false), "Enable text logs")
	flag.Var(&headers, "H", "Add HTTP header (can be used multiple times, e.g., -H 'Authorization: Bearer token')")

	flag.Parse()

	if display := os.Getenv("DISPLAY"); display != "" {
		p.Headless = false
	}

	targets, err := loadTargets(targetsPath, flag.Args(), name, suite, maskSelectors)
	if err != nil {
		log.Fatalf("Failed to load targets: %v", err)
	}

	logger := logging.Logr(logging.MustNew(debug))

	if install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			log.Fatalf("Failed to install playwright: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	s, err := storage.New(ctx, storage.Config{
		Backend:   backend,
		Directory: a.Directory,
		Bucket:    bucket,
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	capturer, err := capture.NewPlaywrightCapturer(ctx, p)
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}

	runner := &snapshot.Runner{
		Capturer:   capturer,
		Storage:    s,
		Assert:     a,
		Comparator: c,
		Headers:    parseHeaders(headers),
		Logger:     logger,
	}

	if schedule == "" {
		summary, err := runner.Run(ctx, targets)
		if err != nil {
			log.Fatalf("Failed to run snapshot: %v", err)
		}
		if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		if summary.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	cronLogger := logger.WithName("cron")
	scheduler := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger)))
	if _, err := scheduler.AddFunc(schedule, func() {
		summary, err := runner.Run(ctx, targets)
		if err != nil {
			logger.Error(err, "failed to run snapshot")
			return
		}
		logger.Info("finished snapshot",
			"passed", summary.Passed,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"generated", summary.Generated,
			"index", summary.Index)
	}); err != nil {
		log.Fatalf("Failed to parse schedule %q: %v", schedule, err)
	}

	scheduler.Start()
	logger.Info("scheduled snapshot", "schedule", schedule, "targets", len(targets))
	<-ctx.Done()
	<-scheduler.Stop().Done()
}

func loadTargets(path string, args []string, name string, suite string, maskSelectors string) ([]snapshot.Target, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return snapshot.LoadTargets(data)
	}

	if len(args) == 0 {
		log.Fatalf("url or -targets not specified")
	}
	target := snapshot.Target{Name: name, URL: args[0]}
	if target.Name == "" {
		target.Name = "snapshot"
	}
	if suite != "" {
		target.Suite = strings.Split(suite, "/")
	}
	if maskSelectors != "" {
		for _, selector := range strings.Split(maskSelectors, ",") {
			target.MaskSelectors = append(target.MaskSelectors, strings.TrimSpace(selector))
		}
	}
	return []snapshot.Target{target}, nil
}

func parseHeaders(h headers) map[string]string {
	if len(h) == 0 {
		return nil
	}
	parsed := make(map[string]string)
	for _, header := range h {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return parsed
}
