package image

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"visual-regression/internal/colorspec"
)

// Tolerance is the largest absolute per-channel difference that still counts
// as a match. Alpha is never compared.
type Tolerance struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

func UniformTolerance(v uint8) Tolerance {
	return Tolerance{Red: v, Green: v, Blue: v}
}

// ParseTolerance accepts a single level ("8") or any color descriptor
// understood by colorspec ("#080808", "8,4,4"). Integer levels must lie in
// [0, 255].
func ParseTolerance(desc string) (Tolerance, error) {
	if err := checkToleranceRange(desc); err != nil {
		return Tolerance{}, err
	}
	c, err := colorspec.Parse(desc)
	if err != nil {
		return Tolerance{}, fmt.Errorf("%w: pixel tolerance: %w", ErrInvalidOptions, err)
	}
	return Tolerance{Red: c.R, Green: c.G, Blue: c.B}, nil
}

type Options struct {
	// PixelSkip inspects every n-th pixel of the linear pixel sequence.
	PixelSkip int
	Tolerance Tolerance
	// MatchRatio is the minimum fraction of matching pixels for a pass.
	MatchRatio float64
}

func DefaultOptions() Options {
	return Options{
		PixelSkip:  2,
		Tolerance:  UniformTolerance(8),
		MatchRatio: 1.0,
	}
}

func (o Options) Validate() error {
	if o.PixelSkip < 1 {
		return fmt.Errorf("%w: pixel skip must be positive, got %d", ErrInvalidOptions, o.PixelSkip)
	}
	if math.IsNaN(o.MatchRatio) || o.MatchRatio < 0 || o.MatchRatio > 1 {
		return fmt.Errorf("%w: match ratio must be within [0, 1], got %v", ErrInvalidOptions, o.MatchRatio)
	}
	return nil
}

// colorspec clamps out of range components, which for a tolerance would
// silently disable or tighten detection.
func checkToleranceRange(desc string) error {
	s := strings.TrimSpace(desc)
	if strings.HasPrefix(s, "#") {
		return nil
	}
	if open := strings.IndexByte(s, '('); open >= 0 && strings.HasSuffix(s, ")") {
		s = s[open+1 : len(s)-1]
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, ".") {
			if f, err := strconv.ParseFloat(part, 64); err == nil && (f < 0 || f > 1) {
				return fmt.Errorf("%w: pixel tolerance fraction %s out of range [0, 1]", ErrInvalidOptions, part)
			}
			continue
		}
		if v, err := strconv.Atoi(part); err == nil && (v < 0 || v > 0xff) {
			return fmt.Errorf("%w: pixel tolerance %d out of range [0, 255]", ErrInvalidOptions, v)
		}
	}
	return nil
}
