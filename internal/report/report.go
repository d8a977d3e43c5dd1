package report

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"time"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/storage"
	"visual-regression/internal/visual"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

type Note struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Status string

const (
	StatusPassed            Status = "passed"
	StatusFailed            Status = "failed"
	StatusGeneratedBaseline Status = "generated baseline"
	StatusMissingBaseline   Status = "missing baseline"
)

// Assertion describes the artifacts written for one assertion. File names
// are relative to the test directory.
type Assertion struct {
	Count       int               `json:"count"`
	Status      Status            `json:"status"`
	BaselineKey string            `json:"baselineKey"`
	Baseline    string            `json:"baseline,omitempty"`
	Difference  string            `json:"difference,omitempty"`
	Screenshot  string            `json:"screenshot,omitempty"`
	Report      *diffimage.Report `json:"report,omitempty"`
	Log         []string          `json:"log,omitempty"`
}

type Test struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Directory  string       `json:"directory"`
	Assertions []*Assertion `json:"assertions"`
}

type Index struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Notes       []Note    `json:"notes"`
	Tests       []*Test   `json:"tests"`
}

// Writer stores report artifacts under Location and keeps the metadata
// needed for the index.
type Writer struct {
	Storage  storage.Storage
	Location string
	Render   diffimage.RenderOptions
	Logger   logr.Logger

	mu    sync.Mutex
	notes []Note
	tests []*Test
	byID  map[string]*Test
}

func NewWriter(s storage.Storage, location string, r diffimage.RenderOptions) *Writer {
	return &Writer{
		Storage:  s,
		Location: location,
		Render:   r,
		Logger:   logr.Discard(),
		byID:     make(map[string]*Test),
	}
}

func (w *Writer) AddNote(note Note) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.notes = append(w.notes, note)
}

func (w *Writer) Notes() []Note {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]Note{}, w.notes...)
}

func (w *Writer) test(ref visual.TestRef) *Test {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.byID == nil {
		w.byID = make(map[string]*Test)
	}
	id := ref.ID()
	t, ok := w.byID[id]
	if !ok {
		t = &Test{ID: id, Name: ref.Name, Directory: ref.Directory()}
		w.byID[id] = t
		w.tests = append(w.tests, t)
	}
	return t
}

// WriteTest writes the artifacts of every assertion of a test: the
// difference image and screenshot for failures, and a copy of the baseline
// whenever one exists.
func (w *Writer) WriteTest(ctx context.Context, ref visual.TestRef, results []*visual.Result) error {
	if len(results) == 0 {
		return nil
	}

	test := w.test(ref)
	directory := path.Join(w.Location, test.Directory)

	assertions := make([]*Assertion, len(results))
	eg, ctx := errgroup.WithContext(ctx)
	for i, result := range results {
		assertion := &Assertion{
			Count:       result.Count,
			Status:      statusOf(result),
			BaselineKey: result.BaselineKey,
			Report:      result.Report,
			Log:         result.Log,
		}
		assertions[i] = assertion
		baselineName := path.Base(result.BaselineKey)

		failed := result.Report != nil && !result.Report.IsPassing
		if failed {
			eg.Go(func() error {
				name := AddSuffix(baselineName, "-diff")
				img, err := diffimage.RenderDifference(result.Report, w.Render)
				if err != nil {
					return xerrors.Errorf("failed to render difference image: %w", err)
				}
				data, err := img.PNG()
				if err != nil {
					return xerrors.Errorf("failed to encode difference image: %w", err)
				}
				if _, err := w.Storage.Put(ctx, path.Join(directory, name), data); err != nil {
					return xerrors.Errorf("failed to write difference image: %w", err)
				}
				assertion.Difference = name
				return nil
			})

			if len(result.Screenshot) > 0 {
				eg.Go(func() error {
					name := AddSuffix(baselineName, "-actual")
					if _, err := w.Storage.Put(ctx, path.Join(directory, name), result.Screenshot); err != nil {
						return xerrors.Errorf("failed to write screenshot: %w", err)
					}
					assertion.Screenshot = name
					return nil
				})
			} else {
				w.AddNote(Note{
					Level:   LevelError,
					Message: "Failed to write screenshot. Missing buffer.",
					Type:    "image write",
				})
			}
		}

		if result.GeneratedBaseline || result.BaselineExists {
			eg.Go(func() error {
				data, err := w.Storage.Get(ctx, result.BaselineKey)
				if err != nil {
					return xerrors.Errorf("failed to read baseline: %w", err)
				}
				name := AddSuffix(baselineName, "")
				if _, err := w.Storage.Put(ctx, path.Join(directory, name), data); err != nil {
					return xerrors.Errorf("failed to copy baseline: %w", err)
				}
				assertion.Baseline = name
				return nil
			})
		}
	}

	err := eg.Wait()

	w.mu.Lock()
	test.Assertions = append(test.Assertions, assertions...)
	w.mu.Unlock()

	if err != nil {
		w.AddNote(Note{Level: LevelError, Message: err.Error(), Type: "test write"})
		return err
	}

	w.Logger.V(1).Info("wrote test report", "test", test.ID, "assertions", len(assertions))
	return nil
}

func statusOf(result *visual.Result) Status {
	switch {
	case result.GeneratedBaseline:
		return StatusGeneratedBaseline
	case !result.BaselineExists:
		return StatusMissingBaseline
	case result.Report != nil && !result.Report.IsPassing:
		return StatusFailed
	default:
		return StatusPassed
	}
}

// Index returns a snapshot of everything written so far.
func (w *Writer) Index() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	tests := make([]*Test, 0, len(w.tests))
	for _, t := range w.tests {
		c := *t
		c.Assertions = append([]*Assertion{}, t.Assertions...)
		tests = append(tests, &c)
	}

	return &Index{
		GeneratedAt: time.Now().UTC(),
		Notes:       append([]Note{}, w.notes...),
		Tests:       tests,
	}
}

// WriteIndex stores index.json at the report root and returns its URL.
func (w *Writer) WriteIndex(ctx context.Context) (string, error) {
	data, err := json.MarshalIndent(w.Index(), "", "  ")
	if err != nil {
		return "", xerrors.Errorf("failed to marshal report index: %w", err)
	}

	url, err := w.Storage.Put(ctx, path.Join(w.Location, "index.json"), data)
	if err != nil {
		return "", xerrors.Errorf("failed to write report index: %w", err)
	}

	w.Logger.Info("wrote report index", "url", url)
	return url, nil
}

// AddSuffix inserts suffix between the base name and the extension and
// drops any directory: AddSuffix("a/b.png", "-diff") is "b-diff.png".
func AddSuffix(filename string, suffix string) string {
	base := path.Base(filename)
	extension := path.Ext(base)
	return strings.TrimSuffix(base, extension) + suffix + extension
}
