package config_test

import (
	"errors"
	"fmt"
	"image/color"
	"runtime"
	"testing"
	"time"
	"visual-regression/internal/config"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/raster"

	"github.com/google/go-cmp/cmp"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_STRING", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "0.5")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "3s")
	t.Setenv("TEST_INVALID_INT", "forty-two")

	if got := config.EnvOrDefault("TEST_STRING", "default"); got != "value" {
		t.Errorf("string: got %q", got)
	}
	if got := config.EnvOrDefault("TEST_INT", 1); got != 42 {
		t.Errorf("int: got %d", got)
	}
	if got := config.EnvOrDefault("TEST_FLOAT", 1.0); got != 0.5 {
		t.Errorf("float64: got %v", got)
	}
	if got := config.EnvOrDefault("TEST_BOOL", false); !got {
		t.Errorf("bool: got %v", got)
	}
	if got := config.EnvOrDefault("TEST_DURATION", time.Second); got != 3*time.Second {
		t.Errorf("duration: got %v", got)
	}
	if got := config.EnvOrDefault("TEST_INVALID_INT", 7); got != 7 {
		t.Errorf("invalid int should fall back to default, got %d", got)
	}
	if got := config.EnvOrDefault("TEST_UNSET_VARIABLE", "fallback"); got != "fallback" {
		t.Errorf("unset: got %q", got)
	}
}

func TestComparator_Options(t *testing.T) {
	type in struct {
		comparator config.Comparator
	}
	type want struct {
		options diffimage.Options
		err     error
	}
	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{comparator: config.DefaultComparator()},
			want: want{options: diffimage.DefaultOptions()},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{comparator: config.Comparator{PixelSkip: 1, PixelTolerance: "#0A0B0C", MatchRatio: 0.9}},
			want: want{options: diffimage.Options{PixelSkip: 1, Tolerance: diffimage.Tolerance{Red: 10, Green: 11, Blue: 12}, MatchRatio: 0.9}},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{comparator: config.Comparator{PixelSkip: 0, PixelTolerance: "8", MatchRatio: 1}},
			want: want{err: diffimage.ErrInvalidOptions},
		},
		{
			name: func() string { _, _, line, _ := runtime.Caller(1); return fmt.Sprintf("L%d", line) }(),
			in:   in{comparator: config.Comparator{PixelSkip: 2, PixelTolerance: "eight", MatchRatio: 1}},
			want: want{err: diffimage.ErrInvalidOptions},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := in.comparator.Options()
			if want.err != nil {
				if !errors.Is(err, want.err) {
					t.Fatalf("Expected %v, got %v", want.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want.options, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestComparator_RenderOptions(t *testing.T) {
	c := config.DefaultComparator()
	c.ErrorColor = "rgb(0, 255, 0)"
	c.Background = "#000"
	c.FillSkipped = 1

	got, err := c.RenderOptions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	background := color.NRGBA{A: 255}
	if diff := cmp.Diff(diffimage.RenderOptions{
		ErrorColor:  color.NRGBA{G: 255, A: 255},
		Background:  &background,
		FillSkipped: 1,
	}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	c.ErrorColor = "not-a-color"
	if _, err := c.RenderOptions(); !errors.Is(err, diffimage.ErrInvalidOptions) {
		t.Errorf("Expected ErrInvalidOptions, got %v", err)
	}
}

func TestComparator_FromEnv(t *testing.T) {
	t.Setenv("PIXEL_SKIP", "1")
	t.Setenv("MATCH_RATIO", "0.95")
	t.Setenv("DIFF_FORMAT", "rectangle")
	t.Setenv("MAX_PIXELS", "1000")

	c := config.ComparatorFromEnv()
	if c.PixelSkip != 1 || c.MatchRatio != 0.95 || c.Format != "rectangle" || c.MaxPixels != 1000 {
		t.Errorf("environment not applied: %+v", c)
	}
	if c.PixelTolerance != "8" {
		t.Errorf("Expected default tolerance, got %q", c.PixelTolerance)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestComparator_Decoder(t *testing.T) {
	if diff := cmp.Diff(raster.Decoder{MaxPixels: raster.DefaultMaxPixels}, config.DefaultComparator().Decoder()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(raster.Decoder{MaxPixels: raster.DefaultMaxPixels}, config.Comparator{}.Decoder()); diff != "" {
		t.Errorf("unset limit must fall back to the default (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(raster.Decoder{MaxPixels: 64}, config.Comparator{MaxPixels: 64}.Decoder()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAssert_Validate(t *testing.T) {
	if err := config.DefaultAssert().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	a := config.DefaultAssert()
	a.MissingBaseline = "panic"
	if err := a.Validate(); err == nil {
		t.Errorf("Expected error for unknown policy")
	}

	a = config.DefaultAssert()
	a.BaselineLocation = ""
	if err := a.Validate(); err == nil {
		t.Errorf("Expected error for empty baseline location")
	}
}
