package frame

import (
	"fmt"
	"image"

	"github.com/example/xgrab/internal/pixfmt"
)

// Assemble decodes a raw width x height buffer laid out as f into an RGBA
// image with opaque alpha.
func Assemble(raw []byte, f pixfmt.Format, width, height int) (*image.RGBA, error) {
	dec, err := prepare(raw, f, width, height)
	if err != nil {
		return nil, err
	}
	pix := make([]uint8, width*height*4)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = dec.RGBA(raw, x, y)
			i += 4
		}
	}
	return NewRGBAFromRaw(width, height, pix)
}

// AssembleRGB is Assemble without the alpha channel.
func AssembleRGB(raw []byte, f pixfmt.Format, width, height int) (*RGB, error) {
	dec, err := prepare(raw, f, width, height)
	if err != nil {
		return nil, err
	}
	pix := make([]uint8, width*height*3)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[i], pix[i+1], pix[i+2] = dec.RGB(raw, x, y)
			i += 3
		}
	}
	return NewRGBFromRaw(width, height, pix)
}

func prepare(raw []byte, f pixfmt.Format, width, height int) (pixfmt.Decoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty geometry %dx%d", ErrBufferConstruction, width, height)
	}
	dec, err := pixfmt.NewDecoder(f, width)
	if err != nil {
		return nil, err
	}
	if need := f.BufferLen(width, height); len(raw) < need {
		return nil, fmt.Errorf("%w: raw buffer has %d bytes, %s needs %d", ErrBufferConstruction, len(raw), f, need)
	}
	return dec, nil
}
