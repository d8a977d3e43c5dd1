package report_test

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"runtime"
	"testing"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/raster"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
	"visual-regression/internal/visual"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestAddSuffix(t *testing.T) {
	type in struct {
		filename string
		suffix   string
	}
	type want struct {
		filename string
	}
	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{filename: "test.png", suffix: "-diff"},
			want: want{filename: "test-diff.png"},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{filename: "baselines/suite/test_1.png", suffix: "-actual"},
			want: want{filename: "test_1-actual.png"},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{filename: "baselines/suite/test.png", suffix: ""},
			want: want{filename: "test.png"},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{filename: "noext", suffix: "-diff"},
			want: want{filename: "noext-diff"},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := report.AddSuffix(in.filename, in.suffix)
			if diff := cmp.Diff(want.filename, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func newStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewFileStorage(context.Background(), storage.FileConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return s
}

func png(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img, err := raster.New(2, 2)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	img.Fill(c)
	data, err := img.PNG()
	if err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return data
}

var ref = visual.TestRef{SuitePath: []string{"suite"}, Name: "test"}

func TestWriter_WriteTest_Failure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStorage(t)
	if _, err := s.Put(ctx, "baselines/suite/test.png", png(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := report.NewWriter(s, "report", diffimage.DefaultRenderOptions())
	result := &visual.Result{
		Test:           ref,
		BaselineKey:    "baselines/suite/test.png",
		BaselineExists: true,
		Report: &diffimage.Report{
			Width:          2,
			Height:         2,
			Differences:    []int{1, 3},
			NumDifferences: 2,
			HasDifferences: true,
		},
		Screenshot: png(t, color.NRGBA{A: 255}),
	}

	if err := w.WriteTest(ctx, ref, []*visual.Result{result}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"report/suite/test.png", "report/suite/test-diff.png", "report/suite/test-actual.png"} {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !exists {
			t.Errorf("Expected %s to be written", key)
		}
	}

	data, err := s.Get(ctx, "report/suite/test-diff.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := raster.DecodeBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	red := color.NRGBA{R: 255, A: 255}
	if diff := cmp.Diff([]color.NRGBA{{}, red, {}, red}, []color.NRGBA{img.NRGBAAt(0), img.NRGBAAt(1), img.NRGBAAt(2), img.NRGBAAt(3)}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	index := w.Index()
	if diff := cmp.Diff([]*report.Test{{
		ID:        ref.ID(),
		Name:      "test",
		Directory: "suite",
		Assertions: []*report.Assertion{{
			Status:      report.StatusFailed,
			BaselineKey: "baselines/suite/test.png",
			Baseline:    "test.png",
			Difference:  "test-diff.png",
			Screenshot:  "test-actual.png",
			Report:      result.Report,
		}},
	}}, index.Tests); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if len(index.Notes) != 0 {
		t.Errorf("Expected no notes, got %+v", index.Notes)
	}
}

func TestWriter_WriteTest_MissingScreenshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w := report.NewWriter(newStorage(t), "report", diffimage.DefaultRenderOptions())
	result := &visual.Result{
		Test:        ref,
		BaselineKey: "baselines/suite/test.png",
		Report:      &diffimage.Report{Width: 1, Height: 1, Differences: []int{0}, NumDifferences: 1},
	}

	if err := w.WriteTest(ctx, ref, []*visual.Result{result}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]report.Note{{
		Level:   report.LevelError,
		Message: "Failed to write screenshot. Missing buffer.",
		Type:    "image write",
	}}, w.Notes()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWriter_WriteTest_Passing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStorage(t)
	if _, err := s.Put(ctx, "baselines/suite/test.png", png(t, color.NRGBA{A: 255})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := report.NewWriter(s, "report", diffimage.DefaultRenderOptions())
	results := []*visual.Result{
		{
			Test:           ref,
			BaselineKey:    "baselines/suite/test.png",
			BaselineExists: true,
			Report:         &diffimage.Report{Width: 2, Height: 2, Differences: []int{}, IsPassing: true},
			Screenshot:     png(t, color.NRGBA{A: 255}),
		},
		{
			Test:        ref,
			Count:       1,
			BaselineKey: "baselines/suite/test_1.png",
		},
	}

	if err := w.WriteTest(ctx, ref, results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for key, want := range map[string]bool{
		"report/suite/test.png":        true,
		"report/suite/test-diff.png":   false,
		"report/suite/test-actual.png": false,
		"report/suite/test_1.png":      false,
	} {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists != want {
			t.Errorf("%s: exists = %v, want %v", key, exists, want)
		}
	}

	var statuses []report.Status
	for _, a := range w.Index().Tests[0].Assertions {
		statuses = append(statuses, a.Status)
	}
	if diff := cmp.Diff([]report.Status{report.StatusPassed, report.StatusMissingBaseline}, statuses); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWriter_WriteIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStorage(t)
	w := report.NewWriter(s, "report", diffimage.DefaultRenderOptions())
	w.AddNote(report.Note{Level: report.LevelWarn, Message: "deprecated", Type: "deprecated"})

	result := &visual.Result{Test: ref, BaselineKey: "baselines/suite/test.png"}
	if err := w.WriteTest(ctx, ref, []*visual.Result{result}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := w.WriteIndex(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := s.Get(ctx, "report/index.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got report.Index
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := report.Index{
		Notes: []report.Note{{Level: report.LevelWarn, Message: "deprecated", Type: "deprecated"}},
		Tests: []*report.Test{{
			ID:        ref.ID(),
			Name:      "test",
			Directory: "suite",
			Assertions: []*report.Assertion{{
				Status:      report.StatusMissingBaseline,
				BaselineKey: "baselines/suite/test.png",
			}},
		}},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(report.Index{}, "GeneratedAt")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWriter_NoResults(t *testing.T) {
	t.Parallel()

	w := report.NewWriter(newStorage(t), "report", diffimage.DefaultRenderOptions())
	if err := w.WriteTest(context.Background(), ref, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.Index().Tests) != 0 {
		t.Errorf("Expected no tests to be recorded")
	}
}
