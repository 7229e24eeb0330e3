// Package pixfmt decodes single pixels out of raw ZPixmap image data.
//
// The decode routine is picked once per image from the reply depth, so the
// per-pixel path is a plain method call with no format switch.
package pixfmt

import (
	"errors"
	"fmt"
)

// ErrUnsupportedDepth is returned when no decoder exists for a pixel depth.
var ErrUnsupportedDepth = errors.New("unsupported pixel depth")

// ByteOrder is the image byte order the server announces in its setup data.
type ByteOrder uint8

const (
	// LSBFirst stores multi-byte pixel values least significant byte first.
	LSBFirst ByteOrder = iota
	// MSBFirst stores multi-byte pixel values most significant byte first.
	MSBFirst
)

func (o ByteOrder) String() string {
	switch o {
	case LSBFirst:
		return "lsb-first"
	case MSBFirst:
		return "msb-first"
	default:
		return fmt.Sprintf("byte-order(%d)", uint8(o))
	}
}

// Format describes how the pixels of one image reply are laid out.
type Format struct {
	// Depth is the number of significant bits per pixel reported in the reply.
	Depth uint8
	// BitsPerPixel comes from the server pixmap format matching Depth and may
	// include padding bits.
	BitsPerPixel uint8
	// ScanlinePad is the row alignment in bits. Zero means rows are packed.
	ScanlinePad uint8
	// Order is the connection wide image byte order.
	Order ByteOrder
}

// Stride returns the number of bytes in one row of an image width pixels wide.
func (f Format) Stride(width int) int {
	bits := width * int(f.BitsPerPixel)
	if pad := int(f.ScanlinePad); pad > 0 {
		bits = (bits + pad - 1) / pad * pad
	}
	return bits / 8
}

// BufferLen is the minimum raw buffer length for a width x height image.
func (f Format) BufferLen(width, height int) int {
	return f.Stride(width) * height
}

func (f Format) String() string {
	return fmt.Sprintf("depth=%d bpp=%d pad=%d %s", f.Depth, f.BitsPerPixel, f.ScanlinePad, f.Order)
}

// Decoder extracts 8-bit channels for the pixel at (x, y) of a raw buffer.
// Both methods compute identical colour values; RGBA only adds an opaque alpha.
type Decoder interface {
	RGB(src []byte, x, y int) (r, g, b uint8)
	RGBA(src []byte, x, y int) (r, g, b, a uint8)
}

// NewDecoder returns the decoder for f, bound to rows of width pixels.
func NewDecoder(f Format, width int) (Decoder, error) {
	l := layout{
		stride: f.Stride(width),
		bpp:    int(f.BitsPerPixel),
		order:  f.Order,
	}
	var minBits int
	var d Decoder
	switch f.Depth {
	case 8:
		minBits, d = 8, depth8{l}
	case 16:
		minBits, d = 16, depth16{l}
	case 24, 32:
		minBits, d = 24, depth24{l}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, f.Depth)
	}
	if l.bpp < minBits || l.bpp%8 != 0 {
		return nil, fmt.Errorf("%w: depth %d stored in %d bits per pixel", ErrUnsupportedDepth, f.Depth, l.bpp)
	}
	return d, nil
}

type layout struct {
	stride int
	bpp    int
	order  ByteOrder
}

func (l layout) offset(x, y int) int {
	return y*l.stride + x*l.bpp/8
}

// depth8 decodes 3-3-2 packed pixels: red in bits 6-7, green 3-5, blue 0-1.
type depth8 struct{ layout }

func (d depth8) RGB(src []byte, x, y int) (r, g, b uint8) {
	p := src[d.offset(x, y)]
	if d.order != LSBFirst {
		p = p&0x70 | p>>4
	}
	r = (p >> 6) * 85
	g = ((p >> 3) & 7) * 36
	b = (p & 3) * 85
	return r, g, b
}

func (d depth8) RGBA(src []byte, x, y int) (r, g, b, a uint8) {
	r, g, b = d.RGB(src, x, y)
	return r, g, b, 0xFF
}

// depth16 decodes 5-6-5 packed pixels.
type depth16 struct{ layout }

func (d depth16) RGB(src []byte, x, y int) (r, g, b uint8) {
	i := d.offset(x, y)
	var p uint16
	if d.order == LSBFirst {
		p = uint16(src[i]) | uint16(src[i+1])<<8
	} else {
		p = uint16(src[i])<<8 | uint16(src[i+1])
	}
	r = uint8((p >> 11) * 8)
	g = uint8(((p >> 5) & 63) * 4)
	b = uint8((p & 31) * 8)
	return r, g, b
}

func (d depth16) RGBA(src []byte, x, y int) (r, g, b, a uint8) {
	r, g, b = d.RGB(src, x, y)
	return r, g, b, 0xFF
}

// depth24 handles depths 24 and 32. A fourth byte, if present, is ignored.
type depth24 struct{ layout }

func (d depth24) RGB(src []byte, x, y int) (r, g, b uint8) {
	i := d.offset(x, y)
	if d.order == LSBFirst {
		return src[i+2], src[i+1], src[i]
	}
	return src[i], src[i+1], src[i+2]
}

func (d depth24) RGBA(src []byte, x, y int) (r, g, b, a uint8) {
	r, g, b = d.RGB(src, x, y)
	return r, g, b, 0xFF
}
