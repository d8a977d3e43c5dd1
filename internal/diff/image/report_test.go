package image

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestComparison_Report(t *testing.T) {
	type in struct {
		width          int
		height         int
		numDifferences int
		matchRatio     float64
	}
	type want struct {
		isPassing       bool
		percentMatching float64
	}
	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 0, matchRatio: 1.0},
			want: want{isPassing: true, percentMatching: 1.0},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 1, matchRatio: 1.0},
			want: want{isPassing: false, percentMatching: 0.99},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 1, matchRatio: 0.98},
			want: want{isPassing: true, percentMatching: 0.99},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 2, matchRatio: 0.98},
			want: want{isPassing: true, percentMatching: 0.98},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 3, matchRatio: 0.98},
			want: want{isPassing: false, percentMatching: 0.97},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 10, height: 10, numDifferences: 100, matchRatio: 0},
			want: want{isPassing: true, percentMatching: 0},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{width: 0, height: 0, numDifferences: 0, matchRatio: 1.0},
			want: want{isPassing: true, percentMatching: 1.0},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			metadata := ImageMetadata{Width: in.width, Height: in.height}
			c := NewComparison(metadata, metadata, in.matchRatio)
			for i := 0; i < in.numDifferences; i++ {
				c.RecordPixelDifference(i)
			}

			report := c.Report()
			if diff := cmp.Diff(want.isPassing, report.IsPassing); diff != "" {
				t.Errorf("isPassing (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.percentMatching, report.PercentMatching(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("percentMatching (-want +got):\n%s", diff)
			}
			if report.NumDifferences != in.numDifferences {
				t.Errorf("Expected %d differences, got %d", in.numDifferences, report.NumDifferences)
			}
			if report.HasDifferences != (in.numDifferences > 0) {
				t.Errorf("HasDifferences = %v with %d differences", report.HasDifferences, in.numDifferences)
			}
		})
	}
}

func TestComparison_ReportIsIdempotent(t *testing.T) {
	metadata := ImageMetadata{Width: 4, Height: 4}
	c := NewComparison(metadata, metadata, 1.0)
	c.RecordPixelDifference(3)
	c.RecordPixelDifference(9)

	first := c.Report()
	second := c.Report()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	first.Differences[0] = 42
	if diff := cmp.Diff([]int{3, 9}, c.Report().Differences); diff != "" {
		t.Errorf("report must not alias the comparison (-want +got):\n%s", diff)
	}
}

func TestComparison_EmptyDifferencesIsNotNil(t *testing.T) {
	metadata := ImageMetadata{Width: 1, Height: 1}
	report := NewComparison(metadata, metadata, 1.0).Report()
	if report.Differences == nil {
		t.Errorf("Expected empty, non-nil differences")
	}
}

func TestComparison_Log(t *testing.T) {
	c := NewComparison(ImageMetadata{}, ImageMetadata{}, 1.0)
	c.RecordLog("scanning")
	c.RecordError(ErrNullImage)

	if diff := cmp.Diff([]string{"scanning", ErrNullImage.Error()}, c.Log()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if c.Err() != ErrNullImage {
		t.Errorf("Expected ErrNullImage, got %v", c.Err())
	}
}

func TestComparison_RecordNilError(t *testing.T) {
	c := NewComparison(ImageMetadata{}, ImageMetadata{}, 1.0)
	c.RecordError(nil)

	if c.Err() != nil {
		t.Errorf("Expected no error, got %v", c.Err())
	}
	if diff := cmp.Diff([]string{}, c.Log()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
