package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"visual-regression/internal/colorspec"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/raster"
)

// EnvOrDefault returns the environment variable parsed as T, or defaultValue
// when the variable is unset or does not parse.
func EnvOrDefault[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case int64:
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return any(intValue).(T)
		}
	case uint:
		if uintValue, err := strconv.ParseUint(value, 10, 0); err == nil {
			return any(uint(uintValue)).(T)
		}
	case uint64:
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return any(uintValue).(T)
		}
	case float64:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return any(floatValue).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

// Comparator holds the textual comparison settings as they arrive from
// flags, environment or request parameters.
type Comparator struct {
	PixelSkip      int
	PixelTolerance string
	MatchRatio     float64
	ErrorColor     string
	// Background is an optional color painted under rendered differences.
	Background  string
	FillSkipped int
	Format      string
	// MaxPixels bounds the decoded size of each input image. Zero or less
	// means raster.DefaultMaxPixels.
	MaxPixels int
}

func DefaultComparator() Comparator {
	return Comparator{
		PixelSkip:      2,
		PixelTolerance: "8",
		MatchRatio:     1.0,
		ErrorColor:     "#F00",
		Format:         "pixel",
		MaxPixels:      raster.DefaultMaxPixels,
	}
}

// ComparatorFromEnv overlays PIXEL_SKIP, PIXEL_TOLERANCE, MATCH_RATIO,
// ERROR_COLOR, BACKGROUND_COLOR, FILL_SKIPPED, DIFF_FORMAT and MAX_PIXELS on
// the defaults.
func ComparatorFromEnv() Comparator {
	d := DefaultComparator()
	return Comparator{
		PixelSkip:      EnvOrDefault("PIXEL_SKIP", d.PixelSkip),
		PixelTolerance: EnvOrDefault("PIXEL_TOLERANCE", d.PixelTolerance),
		MatchRatio:     EnvOrDefault("MATCH_RATIO", d.MatchRatio),
		ErrorColor:     EnvOrDefault("ERROR_COLOR", d.ErrorColor),
		Background:     EnvOrDefault("BACKGROUND_COLOR", d.Background),
		FillSkipped:    EnvOrDefault("FILL_SKIPPED", d.FillSkipped),
		Format:         EnvOrDefault("DIFF_FORMAT", d.Format),
		MaxPixels:      EnvOrDefault("MAX_PIXELS", d.MaxPixels),
	}
}

// Options converts the settings into comparator options.
func (c Comparator) Options() (diffimage.Options, error) {
	tolerance, err := diffimage.ParseTolerance(c.PixelTolerance)
	if err != nil {
		return diffimage.Options{}, err
	}

	o := diffimage.Options{
		PixelSkip:  c.PixelSkip,
		Tolerance:  tolerance,
		MatchRatio: c.MatchRatio,
	}
	if err := o.Validate(); err != nil {
		return diffimage.Options{}, err
	}
	return o, nil
}

func (c Comparator) RenderOptions() (diffimage.RenderOptions, error) {
	r := diffimage.DefaultRenderOptions()

	if c.ErrorColor != "" {
		errorColor, err := colorspec.Parse(c.ErrorColor)
		if err != nil {
			return diffimage.RenderOptions{}, fmt.Errorf("%w: error color: %w", diffimage.ErrInvalidOptions, err)
		}
		r.ErrorColor = errorColor
	}

	if c.Background != "" {
		background, err := colorspec.Parse(c.Background)
		if err != nil {
			return diffimage.RenderOptions{}, fmt.Errorf("%w: background color: %w", diffimage.ErrInvalidOptions, err)
		}
		r.Background = &background
	}

	if c.FillSkipped < 0 {
		return diffimage.RenderOptions{}, fmt.Errorf("%w: fill skipped must not be negative, got %d", diffimage.ErrInvalidOptions, c.FillSkipped)
	}
	r.FillSkipped = c.FillSkipped

	return r, nil
}

// Decoder decodes input images within the configured pixel limit.
func (c Comparator) Decoder() raster.Decoder {
	if c.MaxPixels <= 0 {
		return raster.Decoder{MaxPixels: raster.DefaultMaxPixels}
	}
	return raster.Decoder{MaxPixels: c.MaxPixels}
}

// Differ builds the differ for the configured format.
func (c Comparator) Differ() (diffimage.Differ, error) {
	o, err := c.Options()
	if err != nil {
		return nil, err
	}
	r, err := c.RenderOptions()
	if err != nil {
		return nil, err
	}
	return diffimage.NewDiffer(c.Format, o, r)
}

func (c Comparator) Validate() error {
	if _, err := c.Differ(); err != nil {
		return err
	}
	return nil
}

type MissingBaseline string

const (
	MissingBaselineFail     MissingBaseline = "fail"
	MissingBaselineIgnore   MissingBaseline = "ignore"
	MissingBaselineSkip     MissingBaseline = "skip"
	MissingBaselineSnapshot MissingBaseline = "snapshot"
)

// Assert configures where baselines and reports live and how a missing
// baseline is treated.
type Assert struct {
	Directory           string
	BaselineLocation    string
	ReportLocation      string
	MissingBaseline     MissingBaseline
	RegenerateBaselines bool
}

func DefaultAssert() Assert {
	return Assert{
		Directory:        "visual-test",
		BaselineLocation: "baselines",
		ReportLocation:   "report",
		MissingBaseline:  MissingBaselineSkip,
	}
}

func AssertFromEnv() Assert {
	d := DefaultAssert()
	return Assert{
		Directory:           EnvOrDefault("VISUAL_DIRECTORY", d.Directory),
		BaselineLocation:    EnvOrDefault("BASELINE_LOCATION", d.BaselineLocation),
		ReportLocation:      EnvOrDefault("REPORT_LOCATION", d.ReportLocation),
		MissingBaseline:     MissingBaseline(EnvOrDefault("MISSING_BASELINE", string(d.MissingBaseline))),
		RegenerateBaselines: EnvOrDefault("REGENERATE_BASELINES", d.RegenerateBaselines),
	}
}

func (a Assert) Validate() error {
	switch a.MissingBaseline {
	case MissingBaselineFail, MissingBaselineIgnore, MissingBaselineSkip, MissingBaselineSnapshot:
	default:
		return fmt.Errorf("unknown missing baseline policy %q", a.MissingBaseline)
	}
	if a.BaselineLocation == "" {
		return fmt.Errorf("baseline location is required")
	}
	if a.ReportLocation == "" {
		return fmt.Errorf("report location is required")
	}
	return nil
}
