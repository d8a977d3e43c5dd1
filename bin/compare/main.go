package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	"visual-regression/internal/callback"
	"visual-regression/internal/config"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/logging"
	"visual-regression/internal/raster"
	"visual-regression/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type CompareOutput struct {
	Baseline        string            `json:"baseline"`
	Actual          string            `json:"actual"`
	DiffPath        string            `json:"diffPath,omitempty"`
	PercentMatching float64           `json:"percentMatching"`
	Report          *diffimage.Report `json:"report"`
	Log             []string          `json:"log,omitempty"`
}

func main() {
	_ = godotenv.Load()

	c := config.ComparatorFromEnv()
	var backend string
	var directory string
	var bucket string
	var callbackURL string
	var callbackTimeout time.Duration
	var debug bool
	flag.StringVar(&backend, "storage", config.EnvOrDefault("STORAGE_BACKEND", "file"), "Storage backend for the difference image (file or s3)")
	flag.StringVar(&directory, "directory", config.EnvOrDefault("DIRECTORY", "/tmp"), "Output directory for the file backend")
	flag.StringVar(&bucket, "bucket", config.EnvOrDefault("S3_BUCKET", ""), "Bucket for the s3 backend")
	flag.IntVar(&c.PixelSkip, "pixel-skip", c.PixelSkip, "Compare every n-th pixel")
	flag.StringVar(&c.PixelTolerance, "pixel-tolerance", c.PixelTolerance, "Per-channel tolerance (n or r,g,b)")
	flag.Float64Var(&c.MatchRatio, "match-ratio", c.MatchRatio, "Fraction of matching pixels required to pass")
	flag.StringVar(&c.ErrorColor, "error-color", c.ErrorColor, "Color of differing pixels")
	flag.StringVar(&c.Background, "background-color", c.Background, "Opaque background of the difference image")
	flag.IntVar(&c.FillSkipped, "fill-skipped", c.FillSkipped, "Pixels to paint to the right of each difference")
	flag.StringVar(&c.Format, "format", c.Format, "Difference image format (pixel or rectangle)")
	flag.IntVar(&c.MaxPixels, "max-pixels", c.MaxPixels, "Largest accepted image in pixels")
	flag.StringVar(&callbackURL, "callback-url", config.EnvOrDefault("CALLBACK_URL", ""), "URL that receives the result as JSON")
	flag.DurationVar(&callbackTimeout, "callback-timeout", config.EnvOrDefault("CALLBACK_TIMEOUT", time.Second), "Timeout of the callback including retries")
	flag.BoolVar(&debug, "debug", config.EnvOrDefault("DEBUG", false), "Enable text logs")

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Fatalf("baseline, actual not specified")
	}
	baselinePath := args[0]
	actualPath := args[1]

	logger := logging.MustNew(debug)

	differ, err := c.Differ()
	if err != nil {
		log.Fatalf("Invalid comparator configuration: %v", err)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, storage.Config{
		Backend:   backend,
		Directory: directory,
		Bucket:    bucket,
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	var baseline *raster.Image
	var actual *raster.Image
	{
		eg := errgroup.Group{}
		eg.Go(func() error {
			img, err := loadImage(c.Decoder(), baselinePath)
			if err != nil {
				return fmt.Errorf("baseline: %w", err)
			}
			baseline = img
			return nil
		})
		eg.Go(func() error {
			img, err := loadImage(c.Decoder(), actualPath)
			if err != nil {
				return fmt.Errorf("actual: %w", err)
			}
			actual = img
			return nil
		})
		if err := eg.Wait(); err != nil {
			log.Fatalf("Failed to load image: %v", err)
		}
	}

	result, err := differ.Calculate(baseline, actual)
	if err != nil {
		log.Fatalf("Failed to compare images: %v", err)
	}
	logger.Debug("compared images",
		"differences", result.Report.NumDifferences,
		"elapsed", result.Comparison.RunningTime())

	output := CompareOutput{
		Baseline:        baselinePath,
		Actual:          actualPath,
		PercentMatching: result.Report.PercentMatching(),
		Report:          result.Report,
		Log:             result.Comparison.Log(),
	}

	if result.Report.HasDifferences {
		data, err := result.Image.PNG()
		if err != nil {
			log.Fatalf("Failed to encode diff image: %v", err)
		}

		h := sha256.New()
		h.Write([]byte(baselinePath + actualPath))
		key := fmt.Sprintf("diff/%x/%s.png", h.Sum(nil)[:8], time.Now().Format("20060102150405"))
		output.DiffPath, err = s.Put(ctx, key, data)
		if err != nil {
			log.Fatalf("Failed to save diff image: %v", err)
		}
	}

	if callbackURL != "" {
		if err := callback.NewNotifier(callbackURL, callbackTimeout).Send(ctx, output); err != nil {
			log.Fatalf("Failed to send callback: %v", err)
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	if !result.Report.IsPassing {
		os.Exit(1)
	}
}

func loadImage(decoder raster.Decoder, path string) (*raster.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return decoder.Decode(file)
}
