package capture

import (
	"fmt"
	"image"
	"strings"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/logger"
)

// Mode decides which transport serves monitor and region captures.
type Mode string

const (
	// ModeAuto uses the portal on compositor sessions and X11 otherwise.
	ModeAuto Mode = "auto"
	// ModeX11 always fetches raw images from the X server.
	ModeX11 Mode = "x11"
	// ModePortal always asks xdg-desktop-portal for a screenshot.
	ModePortal Mode = "portal"
)

// ParseMode accepts auto, x11 and portal. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeX11, ModePortal:
		return m, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want auto, x11 or portal)", s)
	}
}

var (
	mode                atomic.Value
	sessionIsCompositor = runningOnWayland
	portalScreenshotFn  = portalScreenshot
)

func init() {
	mode.Store(ModeAuto)
}

// SetMode overrides session detection for later captures.
func SetMode(m Mode) {
	mode.Store(m)
}

// CurrentMode returns the mode set by SetMode.
func CurrentMode() Mode {
	return mode.Load().(Mode)
}

func compositorSession() bool {
	switch CurrentMode() {
	case ModeX11:
		return false
	case ModePortal:
		return true
	default:
		return sessionIsCompositor()
	}
}

// transport is either x11Transport or portalTransport. It is picked once per
// capture call.
type transport interface {
	fmt.Stringer
	rgba(rect image.Rectangle) (*image.RGBA, error)
	rgb(rect image.Rectangle) (*frame.RGB, error)
}

func selectTransport(d Drawable) transport {
	if compositorSession() {
		return portalTransport{}
	}
	return x11Transport{drawable: d}
}

// x11Transport fetches the raw ZPixmap for rect and decodes it locally.
type x11Transport struct {
	drawable Drawable
}

func (t x11Transport) String() string { return "x11" }

func (t x11Transport) fetch(rect image.Rectangle) (RawImage, error) {
	raw, err := backend.FetchImage(t.drawable, rect)
	if err != nil {
		return RawImage{}, err
	}
	logger.WithComponent("capture").Debug().
		Uint32("drawable", uint32(t.drawable)).
		Str("rect", rect.String()).
		Uint8("depth", raw.Format.Depth).
		Uint8("bpp", raw.Format.BitsPerPixel).
		Stringer("order", raw.Format.Order).
		Int("bytes", len(raw.Data)).
		Msg("fetched raw image")
	return raw, nil
}

func (t x11Transport) rgba(rect image.Rectangle) (*image.RGBA, error) {
	raw, err := t.fetch(rect)
	if err != nil {
		return nil, err
	}
	return frame.Assemble(raw.Data, raw.Format, raw.Width, raw.Height)
}

func (t x11Transport) rgb(rect image.Rectangle) (*frame.RGB, error) {
	raw, err := t.fetch(rect)
	if err != nil {
		return nil, err
	}
	return frame.AssembleRGB(raw.Data, raw.Format, raw.Width, raw.Height)
}

// portalTransport takes a desktop screenshot and crops it. The portal
// already returns decoded pixels.
type portalTransport struct{}

func (portalTransport) String() string { return "portal" }

func (portalTransport) rgba(rect image.Rectangle) (*image.RGBA, error) {
	shot, err := portalScreenshotFn()
	if err != nil {
		return nil, err
	}
	return cropToRect(shot, rect)
}

func (p portalTransport) rgb(rect image.Rectangle) (*frame.RGB, error) {
	img, err := p.rgba(rect)
	if err != nil {
		return nil, err
	}
	return frame.RGBFromImage(img), nil
}

// cropToRect copies rect out of a desktop screenshot. rect must lie fully
// inside the screenshot so the result has exactly the requested size.
func cropToRect(src *image.RGBA, rect image.Rectangle) (*image.RGBA, error) {
	if !rect.In(src.Bounds()) {
		return nil, newError("crop", KindRequest, fmt.Errorf("region %v outside captured desktop %v", rect, src.Bounds()))
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, src, rect, xdraw.Src, nil)
	return dst, nil
}
