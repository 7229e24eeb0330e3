package capture

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/pixfmt"
)

var bgrx = pixfmt.Format{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32, Order: pixfmt.LSBFirst}

type fakeBackend struct {
	monitors    []MonitorInfo
	windows     []WindowInfo
	monitorsErr error
	windowsErr  error
	rects       map[uint32]image.Rectangle
	sizes       map[uint32]image.Point
	format      pixfmt.Format
	fetchErr    error
	short       bool

	fetches  int
	lastRect image.Rectangle
	lastDraw Drawable
}

func (f *fakeBackend) ListMonitors() ([]MonitorInfo, error) {
	if f.monitorsErr != nil {
		return nil, f.monitorsErr
	}
	return f.monitors, nil
}

func (f *fakeBackend) ListWindows() ([]WindowInfo, error) {
	if f.windowsErr != nil {
		return nil, f.windowsErr
	}
	return f.windows, nil
}

func (f *fakeBackend) MonitorRect(output uint32) (image.Rectangle, error) {
	r, ok := f.rects[output]
	if !ok {
		return image.Rectangle{}, newError("monitor geometry", KindRequest, errors.New("unknown output"))
	}
	return r, nil
}

func (f *fakeBackend) WindowSize(id uint32) (int, int, error) {
	p, ok := f.sizes[id]
	if !ok {
		return 0, 0, newError("window geometry", KindRequest, errors.New("bad window"))
	}
	return p.X, p.Y, nil
}

// FetchImage encodes the desktop pattern for rect in f.format.
func (f *fakeBackend) FetchImage(d Drawable, rect image.Rectangle) (RawImage, error) {
	f.fetches++
	f.lastRect = rect
	f.lastDraw = d
	if f.fetchErr != nil {
		return RawImage{}, f.fetchErr
	}
	format := f.format
	if format.Depth == 0 {
		format = bgrx
	}
	w, h := rect.Dx(), rect.Dy()
	data := make([]byte, format.BufferLen(w, h))
	stride := format.Stride(w)
	bpp := int(format.BitsPerPixel) / 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := desktopColor(rect.Min.X+x, rect.Min.Y+y)
			off := y*stride + x*bpp
			switch format.Depth {
			case 24, 32:
				if format.Order == pixfmt.LSBFirst {
					data[off], data[off+1], data[off+2] = c.B, c.G, c.R
				} else {
					data[off], data[off+1], data[off+2] = c.R, c.G, c.B
				}
			default:
				data[off] = c.R
			}
		}
	}
	if f.short {
		data = data[:len(data)-1]
	}
	return RawImage{Data: data, Format: format, Width: w, Height: h}, nil
}

func desktopColor(x, y int) color.RGBA {
	return color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xff}
}

func withBackend(t *testing.T, b platformBackend) {
	t.Helper()
	prev := backend
	backend = b
	t.Cleanup(func() { backend = prev })
}

func withMode(t *testing.T, m Mode) {
	t.Helper()
	prev := CurrentMode()
	SetMode(m)
	t.Cleanup(func() { SetMode(prev) })
}

func twoMonitors() *fakeBackend {
	return &fakeBackend{
		monitors: []MonitorInfo{
			{Index: 0, Name: "DP-1", Output: 10, Rect: image.Rect(0, 0, 1920, 1080), Primary: true},
			{Index: 1, Name: "HDMI-1", Output: 11, Rect: image.Rect(1920, 0, 3200, 1024)},
		},
		rects: map[uint32]image.Rectangle{
			10: image.Rect(0, 0, 1920, 1080),
			11: image.Rect(1920, 0, 3200, 1024),
		},
		sizes: map[uint32]image.Point{0x400001: {X: 64, Y: 48}},
	}
}

func TestCaptureMonitorX11(t *testing.T) {
	fb := twoMonitors()
	withBackend(t, fb)
	withMode(t, ModeX11)

	img, err := CaptureMonitor(fb.monitors[1])
	if err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}
	if got, want := img.Bounds(), image.Rect(0, 0, 1280, 1024); got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
	if fb.lastDraw != RootDrawable {
		t.Fatalf("drawable = %v, want root", fb.lastDraw)
	}
	if got, want := img.RGBAAt(5, 7), desktopColor(1925, 7); got != want {
		t.Fatalf("pixel = %v, want %v", got, want)
	}
}

func TestCaptureRegionDimensions(t *testing.T) {
	fb := twoMonitors()
	withBackend(t, fb)
	mon := fb.monitors[1]

	shot := image.NewRGBA(image.Rect(0, 0, 3200, 1080))
	for y := 0; y < 1080; y++ {
		for x := 0; x < 3200; x++ {
			shot.SetRGBA(x, y, desktopColor(x, y))
		}
	}
	prevShot := portalScreenshotFn
	portalScreenshotFn = func() (*image.RGBA, error) { return shot, nil }
	t.Cleanup(func() { portalScreenshotFn = prevShot })

	for _, m := range []Mode{ModeX11, ModePortal} {
		t.Run(string(m), func(t *testing.T) {
			withMode(t, m)
			img, err := CaptureRegion(mon, 10, 20, 400, 300)
			if err != nil {
				t.Fatalf("CaptureRegion: %v", err)
			}
			if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
				t.Fatalf("size = %v, want 400x300", img.Bounds().Size())
			}
			if len(img.Pix) != 400*300*4 {
				t.Fatalf("len(Pix) = %d, want %d", len(img.Pix), 400*300*4)
			}
			if got, want := img.RGBAAt(0, 0), desktopColor(1930, 20); got != want {
				t.Fatalf("origin pixel = %v, want %v", got, want)
			}

			rgb, err := CaptureRegionRGB(mon, 10, 20, 400, 300)
			if err != nil {
				t.Fatalf("CaptureRegionRGB: %v", err)
			}
			if len(rgb.Pix) != 400*300*3 {
				t.Fatalf("len(RGB.Pix) = %d, want %d", len(rgb.Pix), 400*300*3)
			}
		})
	}
	if fb.lastRect != image.Rect(1930, 20, 2330, 320) {
		t.Fatalf("x11 fetch rect = %v", fb.lastRect)
	}
}

func TestCaptureRegionRGBMatchesRGBA(t *testing.T) {
	fb := twoMonitors()
	withBackend(t, fb)
	withMode(t, ModeX11)

	rgba, err := CaptureRegion(fb.monitors[0], 3, 4, 17, 9)
	if err != nil {
		t.Fatalf("CaptureRegion: %v", err)
	}
	rgb, err := CaptureRegionRGB(fb.monitors[0], 3, 4, 17, 9)
	if err != nil {
		t.Fatalf("CaptureRegionRGB: %v", err)
	}
	for y := 0; y < 9; y++ {
		for x := 0; x < 17; x++ {
			a := rgba.RGBAAt(x, y)
			b := rgb.RGBAt(x, y)
			if a.R != b.R || a.G != b.G || a.B != b.B || a.A != 0xff {
				t.Fatalf("(%d,%d): rgba %v rgb %v", x, y, a, b)
			}
		}
	}
}

func TestCaptureRegionInvalid(t *testing.T) {
	fb := twoMonitors()
	withBackend(t, fb)
	withMode(t, ModeX11)

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{name: "zero width", w: 0, h: 10},
		{name: "negative height", w: 10, h: -1},
		{name: "too wide", w: 70000, h: 1},
		{name: "origin overflow", x: 40000, w: 1, h: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := fb.fetches
			_, err := CaptureRegion(fb.monitors[0], tc.x, tc.y, tc.w, tc.h)
			if !errors.Is(err, ErrInvalidRegion) {
				t.Fatalf("err = %v, want ErrInvalidRegion", err)
			}
			if KindOf(err) != KindInvalidRegion {
				t.Fatalf("kind = %v", KindOf(err))
			}
			if fb.fetches != before {
				t.Fatalf("image fetched for invalid region")
			}
		})
	}
}

func TestCaptureErrorsCarryKind(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeBackend)
		wantKind Kind
		wantErr  error
	}{
		{
			name:     "unsupported depth",
			setup:    func(f *fakeBackend) { f.format = pixfmt.Format{Depth: 12, BitsPerPixel: 16, Order: pixfmt.LSBFirst} },
			wantKind: KindUnsupportedDepth,
			wantErr:  pixfmt.ErrUnsupportedDepth,
		},
		{
			name:     "short buffer",
			setup:    func(f *fakeBackend) { f.short = true },
			wantKind: KindBufferConstruction,
			wantErr:  frame.ErrBufferConstruction,
		},
		{
			name:     "request",
			setup:    func(f *fakeBackend) { f.fetchErr = newError("get image", KindRequest, errors.New("BadMatch")) },
			wantKind: KindRequest,
			wantErr:  ErrRequest,
		},
		{
			name:     "connection",
			setup:    func(f *fakeBackend) { f.fetchErr = newError("connect", KindConnection, errors.New("no display")) },
			wantKind: KindConnection,
			wantErr:  ErrConnection,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb := twoMonitors()
			tc.setup(fb)
			withBackend(t, fb)
			withMode(t, ModeX11)

			_, err := CaptureMonitor(fb.monitors[0])
			if KindOf(err) != tc.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", KindOf(err), tc.wantKind, err)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tc.wantErr)
			}
			_, err = CaptureRegionRGB(fb.monitors[0], 0, 0, 4, 4)
			if KindOf(err) != tc.wantKind {
				t.Fatalf("rgb kind = %v, want %v", KindOf(err), tc.wantKind)
			}
		})
	}
}

func TestCaptureMonitorUnknownOutput(t *testing.T) {
	withBackend(t, twoMonitors())
	withMode(t, ModeX11)

	_, err := CaptureMonitor(MonitorInfo{Output: 99})
	if KindOf(err) != KindRequest {
		t.Fatalf("kind = %v, want request", KindOf(err))
	}
	if !strings.HasPrefix(err.Error(), "capture monitor geometry") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestCaptureWindowAlwaysUsesX11(t *testing.T) {
	fb := twoMonitors()
	withBackend(t, fb)
	withMode(t, ModePortal)

	prevShot := portalScreenshotFn
	portalScreenshotFn = func() (*image.RGBA, error) {
		t.Fatalf("portal used for window capture")
		return nil, nil
	}
	t.Cleanup(func() { portalScreenshotFn = prevShot })

	win := WindowInfo{ID: 0x400001, Title: "term"}
	img, err := CaptureWindow(win)
	if err != nil {
		t.Fatalf("CaptureWindow: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if fb.lastDraw != Drawable(0x400001) {
		t.Fatalf("drawable = %#x", fb.lastDraw)
	}
	rgb, err := CaptureWindowRGB(win)
	if err != nil {
		t.Fatalf("CaptureWindowRGB: %v", err)
	}
	if len(rgb.Pix) != 64*48*3 {
		t.Fatalf("len(Pix) = %d", len(rgb.Pix))
	}

	if _, err := CaptureWindow(WindowInfo{}); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("zero window id: %v", err)
	}
	if _, err := CaptureWindow(WindowInfo{ID: 7}); KindOf(err) != KindRequest {
		t.Fatalf("unknown window: %v", err)
	}
}

func TestPortalCropOutsideDesktop(t *testing.T) {
	withBackend(t, twoMonitors())
	withMode(t, ModePortal)

	prevShot := portalScreenshotFn
	portalScreenshotFn = func() (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
	}
	t.Cleanup(func() { portalScreenshotFn = prevShot })

	_, err := CaptureRegion(MonitorInfo{Output: 10}, 90, 90, 20, 20)
	if KindOf(err) != KindRequest {
		t.Fatalf("kind = %v, want request (err %v)", KindOf(err), err)
	}
}

func TestSelectTransport(t *testing.T) {
	prev := sessionIsCompositor
	t.Cleanup(func() { sessionIsCompositor = prev })

	tests := []struct {
		mode       Mode
		compositor bool
		want       string
	}{
		{ModeAuto, false, "x11"},
		{ModeAuto, true, "portal"},
		{ModeX11, true, "x11"},
		{ModePortal, false, "portal"},
	}
	for _, tc := range tests {
		withMode(t, tc.mode)
		sessionIsCompositor = func() bool { return tc.compositor }
		if got := selectTransport(RootDrawable).String(); got != tc.want {
			t.Errorf("mode %s compositor %v: got %s, want %s", tc.mode, tc.compositor, got, tc.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, " x11 ": ModeX11, "portal": ModePortal} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("wayland"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestFindMonitor(t *testing.T) {
	mons := twoMonitors().monitors
	tests := []struct {
		sel     string
		want    string
		wantErr bool
	}{
		{sel: "", want: "DP-1"},
		{sel: "primary", want: "DP-1"},
		{sel: "#1", want: "HDMI-1"},
		{sel: "1", want: "HDMI-1"},
		{sel: "hdmi", want: "HDMI-1"},
		{sel: "5", wantErr: true},
		{sel: "vga", wantErr: true},
	}
	for _, tc := range tests {
		got, err := FindMonitor(mons, tc.sel)
		if tc.wantErr {
			if err == nil {
				t.Errorf("FindMonitor(%q) expected error", tc.sel)
			}
			continue
		}
		if err != nil || got.Name != tc.want {
			t.Errorf("FindMonitor(%q) = %q, %v; want %q", tc.sel, got.Name, err, tc.want)
		}
	}
	if _, err := FindMonitor(nil, ""); !errors.Is(err, errNoMonitors) {
		t.Fatalf("empty list: %v", err)
	}
}

func TestSelectWindow(t *testing.T) {
	wins := []WindowInfo{
		{Index: 0, ID: 0x100, Title: "Terminal", Class: "xterm", PID: 42, Executable: "/usr/bin/xterm"},
		{Index: 1, ID: 0x200, Title: "Docs - Browser", Class: "Firefox", Instance: "Navigator", PID: 77, Executable: "/usr/lib/firefox/firefox", Active: true},
		{Index: 2, ID: 0x300, Title: "Editor", Class: "code", PID: 91},
	}
	tests := []struct {
		sel     string
		want    uint32
		wantErr bool
	}{
		{sel: "", want: 0x200},
		{sel: "active", want: 0x200},
		{sel: "index:2", want: 0x300},
		{sel: "0", want: 0x100},
		{sel: "id:0x300", want: 0x300},
		{sel: "0x100", want: 0x100},
		{sel: "pid:91", want: 0x300},
		{sel: "exec:firefox", want: 0x200},
		{sel: "class:navigator", want: 0x200},
		{sel: "title:edit", want: 0x300},
		{sel: "docs", want: 0x200},
		{sel: "pid:x", wantErr: true},
		{sel: "index:9", wantErr: true},
		{sel: "title:nothing", wantErr: true},
		{sel: "missing", wantErr: true},
	}
	for _, tc := range tests {
		got, err := SelectWindow(tc.sel, wins)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SelectWindow(%q) expected error", tc.sel)
			}
			continue
		}
		if err != nil || got.ID != tc.want {
			t.Errorf("SelectWindow(%q) = %#x, %v; want %#x", tc.sel, got.ID, err, tc.want)
		}
	}

	noActive := wins[:1]
	noActive[0].Active = false
	if got, err := SelectWindow("", noActive); err != nil || got.ID != 0x100 {
		t.Fatalf("fallback = %#x, %v", got.ID, err)
	}
	if _, err := SelectWindow("", nil); !errors.Is(err, errNoWindows) {
		t.Fatalf("empty list: %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := newError("region", KindInvalidRegion, errors.New("size 0x0 must be positive"))
	if got, want := err.Error(), "capture region: invalid region: size 0x0 must be positive"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	wrapped := wrapError("monitor", err)
	if wrapped != error(err) {
		t.Fatalf("wrapError rewrapped an *Error")
	}
	if KindOf(wrapError("x", errors.New("boom"))) != KindUnknown {
		t.Fatalf("plain error should be unknown kind")
	}
}
