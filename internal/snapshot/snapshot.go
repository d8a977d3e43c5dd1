package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"visual-regression/internal/capture"
	"visual-regression/internal/config"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
	"visual-regression/internal/visual"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

// Target is one page to capture and assert.
type Target struct {
	Suite          []string `json:"suite,omitempty"`
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	Baseline       string   `json:"baseline,omitempty"`
	MaskSelectors  []string `json:"maskSelectors,omitempty"`
	WaitSelector   string   `json:"waitSelector,omitempty"`
	ViewportWidth  int      `json:"viewportWidth,omitempty"`
	ViewportHeight int      `json:"viewportHeight,omitempty"`
}

func (t Target) Ref() visual.TestRef {
	return visual.TestRef{SuitePath: t.Suite, Name: t.Name}
}

// LoadTargets parses a JSON array of targets.
func LoadTargets(data []byte) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, xerrors.Errorf("failed to parse targets: %w", err)
	}
	for i, t := range targets {
		if t.Name == "" || t.URL == "" {
			return nil, xerrors.Errorf("target %d: name and url are required", i)
		}
	}
	return targets, nil
}

type Summary struct {
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Generated int    `json:"generated"`
	Index     string `json:"index"`
}

type Runner struct {
	Capturer   capture.Capturer
	Storage    storage.Storage
	Assert     config.Assert
	Comparator config.Comparator
	Headers    map[string]string
	Logger     logr.Logger
}

// Run captures every target, asserts it against its baseline and writes the
// report. Failures of single targets are counted and noted in the report;
// only setup and index errors abort the run.
func (r *Runner) Run(ctx context.Context, targets []Target) (*Summary, error) {
	options, err := r.Comparator.Options()
	if err != nil {
		return nil, xerrors.Errorf("invalid comparator configuration: %w", err)
	}
	render, err := r.Comparator.RenderOptions()
	if err != nil {
		return nil, xerrors.Errorf("invalid render configuration: %w", err)
	}

	asserter, err := visual.NewAsserter(r.Storage, r.Assert, options)
	if err != nil {
		return nil, err
	}
	asserter.Decoder = r.Comparator.Decoder()
	asserter.Logger = r.Logger.WithName("asserter")

	writer := report.NewWriter(r.Storage, r.Assert.ReportLocation, render)
	writer.Logger = r.Logger.WithName("report")

	summary := &Summary{}
	var refs []visual.TestRef
	seen := make(map[string]bool)

	for _, target := range targets {
		ref := target.Ref()
		logger := r.Logger.WithValues("test", ref.ID(), "url", target.URL)

		result, err := r.capture(ctx, target)
		if err != nil {
			logger.Error(err, "failed to capture")
			writer.AddNote(report.Note{Level: report.LevelError, Message: fmt.Sprintf("%s: %v", ref.ID(), err), Type: "capture"})
			summary.Failed++
			continue
		}

		if !seen[ref.ID()] {
			seen[ref.ID()] = true
			refs = append(refs, ref)
		}

		asserted, err := asserter.Assert(ctx, ref, result.Screenshot, visual.AssertOptions{Baseline: target.Baseline})
		var skipError *visual.SkipError
		var regressionError *visual.RegressionError
		switch {
		case err == nil:
			if asserted.GeneratedBaseline {
				summary.Generated++
			} else {
				summary.Passed++
			}
		case errors.As(err, &skipError):
			logger.Info("skipped", "reason", skipError.Reason)
			summary.Skipped++
		case errors.As(err, &regressionError):
			logger.Info("visual regression", "differences", regressionError.Report.NumDifferences)
			summary.Failed++
		default:
			logger.Error(err, "failed to assert")
			writer.AddNote(report.Note{Level: report.LevelError, Message: fmt.Sprintf("%s: %v", ref.ID(), err), Type: "assert"})
			summary.Failed++
		}
	}

	for _, ref := range refs {
		if err := writer.WriteTest(ctx, ref, asserter.Results(ref)); err != nil {
			r.Logger.Error(err, "failed to write test report", "test", ref.ID())
		}
	}

	index, err := writer.WriteIndex(ctx)
	if err != nil {
		return summary, err
	}
	summary.Index = index

	return summary, nil
}

func (r *Runner) capture(ctx context.Context, target Target) (*capture.CaptureResult, error) {
	return r.Capturer.Capture(ctx, target.URL, capture.CaptureOptions{
		Headers:        r.Headers,
		MaskSelectors:  target.MaskSelectors,
		ViewportWidth:  target.ViewportWidth,
		ViewportHeight: target.ViewportHeight,
		WaitSelector:   target.WaitSelector,
	})
}
