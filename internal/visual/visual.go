package visual

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
	"visual-regression/internal/config"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/raster"
	"visual-regression/internal/storage"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// TestRef identifies the test an assertion belongs to. SuitePath lists the
// enclosing suites from the outermost inward.
type TestRef struct {
	SuitePath []string
	Name      string
}

func (t TestRef) ID() string {
	return strings.Join(append(append([]string{}, t.SuitePath...), t.Name), " - ")
}

// Directory is the slash separated path of the enclosing suites.
func (t TestRef) Directory() string {
	segments := make([]string, 0, len(t.SuitePath))
	for _, s := range t.SuitePath {
		segments = append(segments, sanitize(s))
	}
	return path.Join(segments...)
}

// BaselineFilename is the file name of the count-th baseline of the test.
// The first assertion carries no suffix.
func (t TestRef) BaselineFilename(count int) string {
	name := sanitize(t.Name)
	if count > 0 {
		return fmt.Sprintf("%s_%d.png", name, count)
	}
	return name + ".png"
}

func sanitize(segment string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(segment)
}

type AssertOptions struct {
	// Baseline overrides the computed baseline key.
	Baseline string
}

type Result struct {
	Test              TestRef
	Count             int
	BaselineKey       string
	BaselineExists    bool
	GeneratedBaseline bool
	// Report is nil when no comparison ran.
	Report     *diffimage.Report
	Log        []string
	Screenshot []byte
	Elapsed    time.Duration
}

type Asserter struct {
	Storage    storage.Storage
	Comparator *diffimage.PixelComparator
	Config     config.Assert
	Decoder    raster.Decoder
	Logger     logr.Logger

	mu      sync.Mutex
	results map[string][]*Result
}

func NewAsserter(s storage.Storage, c config.Assert, o diffimage.Options) (*Asserter, error) {
	if err := c.Validate(); err != nil {
		return nil, xerrors.Errorf("failed to validate assert config: %w", err)
	}
	comparator, err := diffimage.NewPixelComparator(o)
	if err != nil {
		return nil, xerrors.Errorf("failed to create comparator: %w", err)
	}

	return &Asserter{
		Storage:    s,
		Comparator: comparator,
		Config:     c,
		Decoder:    raster.Decoder{MaxPixels: raster.DefaultMaxPixels},
		Logger:     logr.Discard(),
		results:    make(map[string][]*Result),
	}, nil
}

// Assert checks a PNG screenshot against the test's baseline. The result is
// recorded for the test even when an error is returned, so reporters can
// render failures; a *RegressionError comes with a non-nil result.
func (a *Asserter) Assert(ctx context.Context, test TestRef, screenshot []byte, opts AssertOptions) (*Result, error) {
	result := a.newResult(test, screenshot)

	result.BaselineKey = opts.Baseline
	if result.BaselineKey == "" {
		result.BaselineKey = path.Join(a.Config.BaselineLocation, test.Directory(), test.BaselineFilename(result.Count))
	}
	logger := a.Logger.WithValues("test", test.ID(), "baseline", result.BaselineKey)

	exists, err := a.Storage.Exists(ctx, result.BaselineKey)
	if err != nil {
		return result, xerrors.Errorf("failed to check baseline: %w", err)
	}
	result.BaselineExists = exists

	if a.Config.RegenerateBaselines {
		logger.Info("regenerating baseline")
		return result, a.generateBaseline(ctx, result)
	}
	if exists {
		return result, a.compare(ctx, logger, result)
	}

	switch a.Config.MissingBaseline {
	case config.MissingBaselineIgnore:
		logger.V(1).Info("ignoring missing baseline")
		return result, nil
	case config.MissingBaselineSkip:
		return result, &SkipError{Reason: "missing baseline"}
	case config.MissingBaselineSnapshot:
		logger.Info("generating missing baseline")
		return result, a.generateBaseline(ctx, result)
	default:
		return result, ErrMissingBaseline
	}
}

func (a *Asserter) newResult(test TestRef, screenshot []byte) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.results == nil {
		a.results = make(map[string][]*Result)
	}
	id := test.ID()
	result := &Result{
		Test:       test,
		Count:      len(a.results[id]),
		Screenshot: screenshot,
	}
	a.results[id] = append(a.results[id], result)
	return result
}

// Results returns the assertions recorded for the test in call order.
func (a *Asserter) Results(test TestRef) []*Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]*Result{}, a.results[test.ID()]...)
}

func (a *Asserter) generateBaseline(ctx context.Context, result *Result) error {
	if _, err := a.Storage.Put(ctx, result.BaselineKey, result.Screenshot); err != nil {
		return xerrors.Errorf("failed to write baseline: %w", err)
	}
	result.GeneratedBaseline = true
	return nil
}

func (a *Asserter) compare(ctx context.Context, logger logr.Logger, result *Result) error {
	var baseline *raster.Image
	var actual *raster.Image
	{
		eg, ctx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			data, err := a.Storage.Get(ctx, result.BaselineKey)
			if err != nil {
				return xerrors.Errorf("failed to read baseline: %w", err)
			}
			img, err := a.Decoder.DecodeBytes(data)
			if err != nil {
				return xerrors.Errorf("failed to decode baseline: %w", err)
			}
			baseline = img
			return nil
		})

		eg.Go(func() error {
			img, err := a.Decoder.DecodeBytes(result.Screenshot)
			if err != nil {
				return xerrors.Errorf("failed to decode screenshot: %w", err)
			}
			actual = img
			return nil
		})

		if err := eg.Wait(); err != nil {
			return err
		}
	}

	comparison, err := a.Comparator.Compare(baseline, actual)
	if err != nil {
		return xerrors.Errorf("failed to compare screenshot: %w", err)
	}

	report := comparison.Report()
	result.Report = report
	result.Log = comparison.Log()
	result.Elapsed = comparison.RunningTime()

	logger.V(1).Info("compared screenshot",
		"differences", report.NumDifferences,
		"percentMatching", report.PercentMatching(),
		"elapsed", result.Elapsed)

	if !report.IsPassing {
		return &RegressionError{BaselineKey: result.BaselineKey, Report: report}
	}
	return nil
}
