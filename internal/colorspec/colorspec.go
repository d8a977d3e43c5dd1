package colorspec

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var ErrUnknownFormat = errors.New("unknown color format")

var defaults = [4]int{0, 0, 0, 0xff}

var functional = regexp.MustCompile(`^rgba?\(([^)]*)\)$`)

// Parse converts a color descriptor into a color. Accepted forms are a
// decimal grey level ("51"), hex ("#f00", "#ff0000", "#ff000080"),
// "rgb(255, 0, 0)", "rgba(255, 0, 0, 0.5)" and bare lists ("255,0,0").
func Parse(desc string) (color.NRGBA, error) {
	s := strings.TrimSpace(desc)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty", ErrUnknownFormat)
	}

	if v, err := strconv.Atoi(s); err == nil {
		c := clampComponent(v)
		return color.NRGBA{R: c, G: c, B: c, A: 0xff}, nil
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}

	if m := functional.FindStringSubmatch(s); m != nil {
		return parseList(m[1])
	}

	if strings.Contains(s, ",") {
		return parseList(s)
	}

	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnknownFormat, desc)
}


// FromComponents fills missing trailing components with 0,0,0,255.
func FromComponents(components []int) color.NRGBA {
	var n [4]int
	copy(n[:], defaults[:])
	for i := 0; i < len(components) && i < 4; i++ {
		n[i] = components[i]
	}
	return color.NRGBA{
		R: clampComponent(n[0]),
		G: clampComponent(n[1]),
		B: clampComponent(n[2]),
		A: clampComponent(n[3]),
	}
}

func parseHex(s string) (color.NRGBA, error) {
	switch len(s) {
	case 4, 7:
		c, err := colorful.Hex(s)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
	case 5, 9:
		digits := 1
		if len(s) == 9 {
			digits = 2
		}
		components := make([]int, 0, 4)
		for i := 1; i < len(s); i += digits {
			part := s[i : i+digits]
			if digits == 1 {
				part += part
			}
			v, err := strconv.ParseUint(part, 16, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
			}
			components = append(components, int(v))
		}
		return FromComponents(components), nil
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func parseList(s string) (color.NRGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return color.NRGBA{}, fmt.Errorf("%w: too many components in %q", ErrUnknownFormat, s)
	}
	components := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, ".") {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
			}
			components = append(components, int(math.Min(0xff, 256*f)))
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
		components = append(components, v)
	}
	return FromComponents(components), nil
}

func clampComponent(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}
