// Package capture grabs monitors, monitor regions and windows as canonical
// RGBA or RGB images.
//
// Every call opens its own display connection and releases it before
// returning, so captures may run concurrently from several goroutines.
package capture

import (
	"fmt"
	"image"
	"math"

	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/logger"
)

// CaptureMonitor captures the whole of m as RGBA.
func CaptureMonitor(m MonitorInfo) (*image.RGBA, error) {
	const op = "monitor"
	rect, err := backend.MonitorRect(m.Output)
	if err != nil {
		return nil, wrapError(op, err)
	}
	if err := validateRect(op, rect); err != nil {
		return nil, err
	}
	t := selectTransport(RootDrawable)
	logTransport(op, t, rect)
	img, err := t.rgba(rect)
	return img, wrapError(op, err)
}

// CaptureRegion captures a width x height rectangle whose origin (x, y) is
// relative to the top-left corner of m.
func CaptureRegion(m MonitorInfo, x, y, width, height int) (*image.RGBA, error) {
	const op = "region"
	rect, err := regionRect(op, m, x, y, width, height)
	if err != nil {
		return nil, err
	}
	t := selectTransport(RootDrawable)
	logTransport(op, t, rect)
	img, err := t.rgba(rect)
	return img, wrapError(op, err)
}

// CaptureRegionRGB is CaptureRegion without the alpha channel.
func CaptureRegionRGB(m MonitorInfo, x, y, width, height int) (*frame.RGB, error) {
	const op = "region rgb"
	rect, err := regionRect(op, m, x, y, width, height)
	if err != nil {
		return nil, err
	}
	t := selectTransport(RootDrawable)
	logTransport(op, t, rect)
	img, err := t.rgb(rect)
	return img, wrapError(op, err)
}

// CaptureWindow captures the contents of w as RGBA. Windows are always read
// through X11, also on compositor sessions.
func CaptureWindow(w WindowInfo) (*image.RGBA, error) {
	const op = "window"
	rect, err := windowBounds(op, w)
	if err != nil {
		return nil, err
	}
	t := x11Transport{drawable: Drawable(w.ID)}
	logTransport(op, t, rect)
	img, err := t.rgba(rect)
	return img, wrapError(op, err)
}

// CaptureWindowRGB is CaptureWindow without the alpha channel.
func CaptureWindowRGB(w WindowInfo) (*frame.RGB, error) {
	const op = "window rgb"
	rect, err := windowBounds(op, w)
	if err != nil {
		return nil, err
	}
	t := x11Transport{drawable: Drawable(w.ID)}
	logTransport(op, t, rect)
	img, err := t.rgb(rect)
	return img, wrapError(op, err)
}

// regionRect translates a monitor relative rectangle to desktop coordinates.
// Empty sizes are rejected before the monitor is queried.
func regionRect(op string, m MonitorInfo, x, y, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, newError(op, KindInvalidRegion, fmt.Errorf("size %dx%d must be positive", width, height))
	}
	origin, err := backend.MonitorRect(m.Output)
	if err != nil {
		return image.Rectangle{}, wrapError(op, err)
	}
	rect := image.Rect(x, y, x+width, y+height).Add(origin.Min)
	if err := validateRect(op, rect); err != nil {
		return image.Rectangle{}, err
	}
	return rect, nil
}

func windowBounds(op string, w WindowInfo) (image.Rectangle, error) {
	if w.ID == 0 {
		return image.Rectangle{}, newError(op, KindInvalidRegion, fmt.Errorf("window has no id"))
	}
	width, height, err := backend.WindowSize(w.ID)
	if err != nil {
		return image.Rectangle{}, wrapError(op, err)
	}
	rect := image.Rect(0, 0, width, height)
	if err := validateRect(op, rect); err != nil {
		return image.Rectangle{}, err
	}
	return rect, nil
}

// validateRect checks rect against the GetImage wire limits: a signed 16-bit
// origin and an unsigned 16-bit, non-zero size.
func validateRect(op string, rect image.Rectangle) error {
	switch {
	case rect.Dx() <= 0 || rect.Dy() <= 0:
		return newError(op, KindInvalidRegion, fmt.Errorf("empty rectangle %v", rect))
	case rect.Dx() > math.MaxUint16 || rect.Dy() > math.MaxUint16:
		return newError(op, KindInvalidRegion, fmt.Errorf("rectangle %v too large", rect))
	case rect.Min.X < math.MinInt16 || rect.Min.X > math.MaxInt16 ||
		rect.Min.Y < math.MinInt16 || rect.Min.Y > math.MaxInt16:
		return newError(op, KindInvalidRegion, fmt.Errorf("rectangle origin %v out of range", rect.Min))
	}
	return nil
}

func logTransport(op string, t transport, rect image.Rectangle) {
	logger.WithComponent("capture").Debug().
		Str("op", op).
		Stringer("transport", t).
		Str("rect", rect.String()).
		Msg("capture")
}
