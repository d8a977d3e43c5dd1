package colorspec_test

import (
	"errors"
	"fmt"
	"image/color"
	"runtime"
	"testing"
	"visual-regression/internal/colorspec"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	type in struct {
		first string
	}

	type want struct {
		first color.NRGBA
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"51",
			},
			want{
				color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"#123",
			},
			want{
				color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"#123ABC",
			},
			want{
				color.NRGBA{R: 0x12, G: 0x3a, B: 0xbc, A: 0xff},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"#F00",
			},
			want{
				color.NRGBA{R: 0xff, A: 0xff},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"#ff000080",
			},
			want{
				color.NRGBA{R: 0xff, A: 0x80},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"rgb(0, 64, 128)",
			},
			want{
				color.NRGBA{R: 0, G: 64, B: 128, A: 0xff},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"rgb(16, 32, 255, 0.5)",
			},
			want{
				color.NRGBA{R: 16, G: 32, B: 255, A: 128},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"rgba(1, 2, 3, 1.0)",
			},
			want{
				color.NRGBA{R: 1, G: 2, B: 3, A: 255},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"8,9,10",
			},
			want{
				color.NRGBA{R: 8, G: 9, B: 10, A: 0xff},
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := colorspec.Parse(in.first)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	t.Parallel()

	for _, desc := range []string{"", "red", "#12", "#gggggg", "rgb(a, b, c)", "1,2,3,4,5"} {
		if _, err := colorspec.Parse(desc); !errors.Is(err, colorspec.ErrUnknownFormat) {
			t.Errorf("Parse(%q): expected ErrUnknownFormat, got %v", desc, err)
		}
	}
}

func TestFromComponents(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		if diff := cmp.Diff(color.NRGBA{A: 0xff}, colorspec.FromComponents(nil)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("ThreeValues", func(t *testing.T) {
		if diff := cmp.Diff(color.NRGBA{R: 0x11, G: 0x22, B: 0xaa, A: 0xff}, colorspec.FromComponents([]int{0x11, 0x22, 0xaa})); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Normalized", func(t *testing.T) {
		if diff := cmp.Diff(color.NRGBA{R: 0x11, G: 0x22, B: 0xaa, A: 128}, colorspec.FromComponents([]int{0x11, 0x22, 0xaa, 128})); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Clamped", func(t *testing.T) {
		if diff := cmp.Diff(color.NRGBA{R: 0, G: 0xff, B: 0, A: 0xff}, colorspec.FromComponents([]int{-5, 300})); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}
