package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
)

var (
	ErrDecode        = errors.New("failed to decode image")
	ErrImageTooLarge = errors.New("image too large")
)

// Image is a decoded, non-premultiplied RGBA raster. Pix holds Width*Height
// pixels in row-major order with no row padding, four bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed (fully transparent) image.
func New(width int, height int) (*Image, error) {
	n, err := byteLength(width, height)
	if err != nil {
		return nil, err
	}

	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, n),
	}, nil
}

func (i *Image) PixelCount() int {
	return i.Width * i.Height
}

// PixOffset returns the byte offset of the pixel at the given linear index.
func (i *Image) PixOffset(index int) int {
	return index << 2
}

func (i *Image) NRGBAAt(index int) color.NRGBA {
	o := i.PixOffset(index)
	return color.NRGBA{R: i.Pix[o], G: i.Pix[o+1], B: i.Pix[o+2], A: i.Pix[o+3]}
}

func (i *Image) SetNRGBA(index int, c color.NRGBA) {
	o := i.PixOffset(index)
	i.Pix[o] = c.R
	i.Pix[o+1] = c.G
	i.Pix[o+2] = c.B
	i.Pix[o+3] = c.A
}

// Fill sets every pixel to c.
func (i *Image) Fill(c color.NRGBA) {
	if len(i.Pix) == 0 {
		return
	}
	i.Pix[0] = c.R
	i.Pix[1] = c.G
	i.Pix[2] = c.B
	i.Pix[3] = c.A
	for filled := 4; filled < len(i.Pix); filled *= 2 {
		copy(i.Pix[filled:], i.Pix[:filled])
	}
}

// NRGBA returns a standard library view sharing the same pixel buffer.
func (i *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    i.Pix,
		Stride: i.Width * 4,
		Rect:   image.Rect(0, 0, i.Width, i.Height),
	}
}

func (i *Image) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, i.NRGBA()); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func (i *Image) PNG() ([]byte, error) {
	var buffer bytes.Buffer
	if err := i.EncodePNG(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DefaultMaxPixels bounds decoded images to roughly 400 MiB of pixel data.
const DefaultMaxPixels = 100_000_000

// Decoder reads any registered image format (png, jpeg). The header is
// checked against MaxPixels before any pixel data is allocated, so a small
// compressed upload cannot claim an arbitrarily large buffer. A MaxPixels of
// zero disables the check.
type Decoder struct {
	MaxPixels int
}

func (d Decoder) Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return d.DecodeBytes(data)
}

func (d Decoder) DecodeBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if _, err := byteLength(header.Width, header.Height); err != nil {
		return nil, err
	}
	if d.MaxPixels > 0 && header.Width*header.Height > d.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, header.Width, header.Height, d.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromImage(img)
}

// Decode uses DefaultMaxPixels.
func Decode(r io.Reader) (*Image, error) {
	return Decoder{MaxPixels: DefaultMaxPixels}.Decode(r)
}

func DecodeBytes(data []byte) (*Image, error) {
	return Decoder{MaxPixels: DefaultMaxPixels}.DecodeBytes(data)
}

// FromImage converts img into a tightly packed, non-premultiplied raster.
func FromImage(img image.Image) (*Image, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	dst, err := New(width, height)
	if err != nil {
		return nil, err
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			start := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*width*4:(y+1)*width*4], src.Pix[start:start+width*4])
		}
	case *image.RGBA:
		for y := 0; y < height; y++ {
			start := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := dst.Pix[y*width*4 : (y+1)*width*4]
			copy(row, src.Pix[start:start+width*4])
			for o := 0; o < len(row); o += 4 {
				a := row[o+3]
				if a == 0xff || a == 0 {
					continue
				}
				row[o] = unpremultiply(row[o], a)
				row[o+1] = unpremultiply(row[o+1], a)
				row[o+2] = unpremultiply(row[o+2], a)
			}
		}
	case *image.YCbCr:
		o := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, b := ycbcrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				dst.Pix[o] = r
				dst.Pix[o+1] = g
				dst.Pix[o+2] = b
				dst.Pix[o+3] = 0xff
				o += 4
			}
		}
	default:
		o := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				dst.Pix[o] = c.R
				dst.Pix[o+1] = c.G
				dst.Pix[o+2] = c.B
				dst.Pix[o+3] = c.A
				o += 4
			}
		}
	}

	return dst, nil
}

func unpremultiply(v uint8, a uint8) uint8 {
	return uint8((uint32(v)*0xff + uint32(a)/2) / uint32(a))
}

// ycbcrToRGB follows ITU-R BT.601 full range, as used by JFIF.
func ycbcrToRGB(y uint8, cb uint8, cr uint8) (uint8, uint8, uint8) {
	// coefficients scaled by 2^16
	const (
		crToR = 91881
		cbToG = 22554
		crToG = 46802
		cbToB = 116130
	)

	yy := int32(y) * 0x10101
	cb1 := int32(cb) - 128
	cr1 := int32(cr) - 128

	r := (yy + crToR*cr1) >> 16
	g := (yy - cbToG*cb1 - crToG*cr1) >> 16
	b := (yy + cbToB*cb1) >> 16

	return clamp(r), clamp(g), clamp(b)
}

func clamp(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func byteLength(width int, height int) (int, error) {
	if width < 0 || height < 0 {
		return 0, fmt.Errorf("%w: negative dimensions %dx%d", ErrImageTooLarge, width, height)
	}
	pixels, ok := checkedMul(width, height)
	if !ok {
		return 0, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
	}
	n, ok := checkedMul(pixels, 4)
	if !ok {
		return 0, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
	}
	return n, nil
}

func checkedMul(l int, r int) (int, bool) {
	if l == 0 || r == 0 {
		return 0, true
	}
	if l > math.MaxInt/r {
		return 0, false
	}
	return l * r, true
}
