// Package frame turns raw ZPixmap buffers into canonical 8-bit images.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ErrBufferConstruction reports a pixel buffer whose length does not match
// its declared geometry.
var ErrBufferConstruction = errors.New("image buffer construction failed")

// RGB is an in-memory image of packed 8-bit red, green and blue samples.
// Rows are stored top to bottom with no padding beyond Stride.
type RGB struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewRGB returns a zeroed RGB image with the given bounds.
func NewRGB(r image.Rectangle) *RGB {
	w, h := r.Dx(), r.Dy()
	return &RGB{Pix: make([]uint8, 3*w*h), Stride: 3 * w, Rect: r}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color { return p.RGBAt(x, y) }

// RGBAt returns the opaque colour of the pixel at (x, y).
func (p *RGB) RGBAt(x, y int) color.RGBA {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xFF}
}

// PixOffset returns the index of the first byte of pixel (x, y) in Pix.
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Opaque reports true; RGB images carry no alpha.
func (p *RGB) Opaque() bool { return true }

// NewRGBFromRaw wraps pix as a width x height RGB image. The length of pix
// must be exactly width*height*3.
func NewRGBFromRaw(width, height int, pix []uint8) (*RGB, error) {
	if err := checkLen(width, height, 3, pix); err != nil {
		return nil, err
	}
	return &RGB{Pix: pix, Stride: 3 * width, Rect: image.Rect(0, 0, width, height)}, nil
}

// NewRGBAFromRaw wraps pix as a width x height RGBA image. The length of pix
// must be exactly width*height*4.
func NewRGBAFromRaw(width, height int, pix []uint8) (*image.RGBA, error) {
	if err := checkLen(width, height, 4, pix); err != nil {
		return nil, err
	}
	return &image.RGBA{Pix: pix, Stride: 4 * width, Rect: image.Rect(0, 0, width, height)}, nil
}

func checkLen(width, height, channels int, pix []uint8) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty geometry %dx%d", ErrBufferConstruction, width, height)
	}
	if want := width * height * channels; len(pix) != want {
		return fmt.Errorf("%w: have %d bytes, want %d for %dx%dx%d", ErrBufferConstruction, len(pix), want, width, height, channels)
	}
	return nil
}

// RGBFromImage copies the colour channels of src into a new RGB image whose
// origin is (0, 0). Alpha is discarded.
func RGBFromImage(src image.Image) *RGB {
	b := src.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(dst.Rect)
		xdraw.Copy(rgba, image.Point{}, src, b, xdraw.Src, nil)
		b = rgba.Bounds()
	}
	for y := 0; y < b.Dy(); y++ {
		s := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
		d := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			d[3*x] = s[4*x]
			d[3*x+1] = s[4*x+1]
			d[3*x+2] = s[4*x+2]
		}
	}
	return dst
}
