package image

import (
	"image/color"
	"visual-regression/internal/raster"
)

type RenderOptions struct {
	ErrorColor color.NRGBA
	// Background, when set, is painted fully opaque under the differences.
	// Otherwise the output starts transparent.
	Background *color.NRGBA
	// FillSkipped extends every flagged pixel to the right by up to this
	// many pixels, stopping at the row edge. Zero marks only the sampled
	// pixel itself, which leaves gaps when the scan used a pixel skip.
	FillSkipped int
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ErrorColor: color.NRGBA{R: 0xff, A: 0xff},
	}
}

// RenderDifference draws the report's differing pixels onto a new image of
// the report's dimensions. Indices outside the grid are ignored.
func RenderDifference(report *Report, opts RenderOptions) (*raster.Image, error) {
	if report == nil {
		return nil, ErrNullImage
	}

	img, err := raster.New(report.Width, report.Height)
	if err != nil {
		return nil, err
	}

	if opts.Background != nil {
		background := *opts.Background
		background.A = 0xff
		img.Fill(background)
	}

	numPixels := img.PixelCount()
	for _, index := range report.Differences {
		if index < 0 || index >= numPixels {
			continue
		}
		img.SetNRGBA(index, opts.ErrorColor)

		if opts.FillSkipped > 0 {
			x := index % report.Width
			for n := 1; n <= opts.FillSkipped && x+n < report.Width; n++ {
				img.SetNRGBA(index+n, opts.ErrorColor)
			}
		}
	}

	return img, nil
}
