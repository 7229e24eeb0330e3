//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/example/xgrab/internal/pixfmt"
)

// formatFor looks up the pixmap format the server announced for depth.
// The byte order is connection wide and comes from the setup block.
func formatFor(setup *xproto.SetupInfo, depth byte) (pixfmt.Format, error) {
	order := pixfmt.LSBFirst
	if setup.ImageByteOrder == xproto.ImageOrderMSBFirst {
		order = pixfmt.MSBFirst
	}
	for _, pf := range setup.PixmapFormats {
		if pf.Depth == depth {
			return pixfmt.Format{
				Depth:        depth,
				BitsPerPixel: pf.BitsPerPixel,
				ScanlinePad:  pf.ScanlinePad,
				Order:        order,
			}, nil
		}
	}
	return pixfmt.Format{}, fmt.Errorf("%w for depth %d", ErrPixmapFormatNotFound, depth)
}

func rawFromReply(setup *xproto.SetupInfo, reply *xproto.GetImageReply, width, height int) (RawImage, error) {
	if reply == nil {
		return RawImage{}, newError("get image", KindRequest, fmt.Errorf("missing reply"))
	}
	f, err := formatFor(setup, reply.Depth)
	if err != nil {
		return RawImage{}, newError("get image", KindPixmapFormatNotFound, err)
	}
	return RawImage{Data: reply.Data, Format: f, Width: width, Height: height}, nil
}
