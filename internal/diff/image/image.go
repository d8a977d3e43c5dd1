package image

import (
	"fmt"
	"image/color"
	"visual-regression/internal/raster"
)

type DiffResult struct {
	Comparison *Comparison
	Report     *Report
	Image      *raster.Image
}

type Differ interface {
	Calculate(baseline *raster.Image, actual *raster.Image) (*DiffResult, error)
}

// NewDiffer returns the differ for a format name: "pixel" marks every
// differing pixel, "rectangle" outlines clusters of differences on top of
// the actual image.
func NewDiffer(format string, o Options, r RenderOptions) (Differ, error) {
	comparator, err := NewPixelComparator(o)
	if err != nil {
		return nil, err
	}

	switch format {
	case "", "pixel":
		return &PixelDiff{comparator: comparator, render: r}, nil
	case "rectangle":
		return &RectangleDiff{comparator: comparator, outline: r.ErrorColor, thickness: 3}, nil
	default:
		return nil, fmt.Errorf("%w: unknown diff format %q", ErrInvalidOptions, format)
	}
}

type PixelDiff struct {
	comparator *PixelComparator
	render     RenderOptions
}

func (p *PixelDiff) Calculate(baseline *raster.Image, actual *raster.Image) (*DiffResult, error) {
	comparison, err := p.comparator.Compare(baseline, actual)
	if err != nil {
		return nil, err
	}
	report := comparison.Report()

	img, err := RenderDifference(report, p.render)
	if err != nil {
		return nil, err
	}

	return &DiffResult{
		Comparison: comparison,
		Report:     report,
		Image:      img,
	}, nil
}

type RectangleDiff struct {
	comparator *PixelComparator
	outline    color.NRGBA
	thickness  int
}

func (r *RectangleDiff) Calculate(baseline *raster.Image, actual *raster.Image) (*DiffResult, error) {
	comparison, err := r.comparator.Compare(baseline, actual)
	if err != nil {
		return nil, err
	}
	report := comparison.Report()

	img := &raster.Image{
		Width:  actual.Width,
		Height: actual.Height,
		Pix:    append([]byte(nil), actual.Pix...),
	}
	OutlineRegions(img, Regions(report, r.comparator.pixelSkip), r.outline, r.thickness)

	return &DiffResult{
		Comparison: comparison,
		Report:     report,
		Image:      img,
	}, nil
}
