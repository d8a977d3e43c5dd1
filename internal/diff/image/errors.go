package image

import (
	"errors"
	"fmt"
	"visual-regression/internal/raster"
)

var (
	ErrNullImage         = errors.New("null image")
	ErrDimensionMismatch = errors.New("images are different sizes")
	ErrMalformedImage    = errors.New("malformed image")
	ErrInvalidOptions    = errors.New("invalid options")

	ErrDecode        = raster.ErrDecode
	ErrImageTooLarge = raster.ErrImageTooLarge
)

type DimensionMismatchError struct {
	Baseline ImageMetadata
	Actual   ImageMetadata
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("images are different sizes. Expected (%dx%d); Actual (%dx%d)",
		e.Baseline.Width, e.Baseline.Height, e.Actual.Width, e.Actual.Height)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
