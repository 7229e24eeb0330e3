// Package preview shows a capture in a desktop window.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/xgrab/internal/logger"
)

const (
	statusHeight = 18
	checkerSize  = 8
	maxWindow    = 1600
	minZoom      = 0.125
	maxZoom      = 8
)

var (
	checkerLight = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	checkerDark  = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	statusBg     = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// Show opens a window displaying img and blocks until it is closed.
// Escape or q closes, + and - zoom, 0 fits the window.
func Show(title string, img image.Image) error {
	var runErr error
	driver.Main(func(s screen.Screen) {
		runErr = run(s, title, img)
	})
	return runErr
}

type view struct {
	img     image.Image
	title   string
	winSize image.Point
	zoom    float64 // zero fits the image to the window
}

func run(s screen.Screen, title string, img image.Image) error {
	v := &view{img: img, title: title, winSize: initialSize(img.Bounds().Size())}
	w, err := s.NewWindow(&screen.NewWindowOptions{
		Width:  v.winSize.X,
		Height: v.winSize.Y,
		Title:  title,
	})
	if err != nil {
		return fmt.Errorf("new window: %w", err)
	}
	defer w.Release()

	log := logger.WithComponent("preview")
	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return nil
			}
		case size.Event:
			v.winSize = image.Pt(e.WidthPx, e.HeightPx)
		case key.Event:
			if e.Direction != key.DirPress {
				continue
			}
			if v.handleKey(e) {
				return nil
			}
			w.Send(paint.Event{})
		case paint.Event:
			if e.External && v.winSize.X == 0 {
				continue
			}
			if err := v.paint(s, w); err != nil {
				log.Warn().Err(err).Msg("paint")
			}
		case error:
			log.Warn().Err(e).Msg("window event")
		}
	}
}

// handleKey applies a key press and reports whether the window should close.
func (v *view) handleKey(e key.Event) bool {
	switch {
	case e.Code == key.CodeEscape || e.Rune == 'q':
		return true
	case e.Rune == '+' || e.Rune == '=':
		v.zoom = clampZoom(v.currentZoom() * 2)
	case e.Rune == '-':
		v.zoom = clampZoom(v.currentZoom() / 2)
	case e.Rune == '1':
		v.zoom = 1
	case e.Rune == '0':
		v.zoom = 0
	}
	return false
}

func (v *view) currentZoom() float64 {
	if v.zoom > 0 {
		return v.zoom
	}
	return fitZoom(v.img.Bounds().Size(), v.canvas().Size())
}

func (v *view) canvas() image.Rectangle {
	h := v.winSize.Y - statusHeight
	if h < 0 {
		h = 0
	}
	return image.Rect(0, 0, v.winSize.X, h)
}

func (v *view) paint(s screen.Screen, w screen.Window) error {
	if v.winSize.X <= 0 || v.winSize.Y <= 0 {
		return nil
	}
	b, err := s.NewBuffer(v.winSize)
	if err != nil {
		return fmt.Errorf("new buffer: %w", err)
	}
	defer b.Release()

	v.render(b.RGBA())
	w.Upload(image.Point{}, b, b.Bounds())
	w.Publish()
	return nil
}

// render draws the checker backdrop, the scaled image and the status line.
func (v *view) render(dst *image.RGBA) {
	canvas := v.canvas()
	drawCheckerboard(dst, canvas)
	zoom := v.currentZoom()
	xdraw.NearestNeighbor.Scale(dst, placeImage(v.img.Bounds().Size(), canvas, zoom), v.img, v.img.Bounds(), draw.Over, nil)

	status := image.Rect(0, canvas.Max.Y, dst.Bounds().Dx(), dst.Bounds().Dy())
	draw.Draw(dst, status, image.NewUniform(statusBg), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, status.Max.Y-4),
	}
	d.DrawString(statusText(v.img.Bounds().Size(), zoom))
}

func statusText(size image.Point, zoom float64) string {
	return fmt.Sprintf("%dx%d  %.0f%%  [+/-] zoom  [0] fit  [q] close", size.X, size.Y, zoom*100)
}

// initialSize fits the image and status line into maxWindow.
func initialSize(img image.Point) image.Point {
	zoom := fitZoom(img, image.Pt(maxWindow, maxWindow))
	w := int(float64(img.X) * zoom)
	h := int(float64(img.Y) * zoom)
	if w < 320 {
		w = 320
	}
	if h < 120 {
		h = 120
	}
	return image.Pt(w, h+statusHeight)
}

// fitZoom is the largest zoom not above 1 that shows all of img in area.
func fitZoom(img, area image.Point) float64 {
	if img.X <= 0 || img.Y <= 0 || area.X <= 0 || area.Y <= 0 {
		return 1
	}
	zx := float64(area.X) / float64(img.X)
	zy := float64(area.Y) / float64(img.Y)
	z := zx
	if zy < z {
		z = zy
	}
	if z > 1 {
		z = 1
	}
	return z
}

func clampZoom(z float64) float64 {
	switch {
	case z < minZoom:
		return minZoom
	case z > maxZoom:
		return maxZoom
	}
	return z
}

// placeImage centres the zoomed image inside canvas.
func placeImage(img image.Point, canvas image.Rectangle, zoom float64) image.Rectangle {
	w := int(float64(img.X) * zoom)
	h := int(float64(img.Y) * zoom)
	x0 := canvas.Min.X + (canvas.Dx()-w)/2
	y0 := canvas.Min.Y + (canvas.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func drawCheckerboard(dst *image.RGBA, rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ((x/checkerSize)+(y/checkerSize))%2 == 0 {
				dst.SetRGBA(x, y, checkerLight)
			} else {
				dst.SetRGBA(x, y, checkerDark)
			}
		}
	}
}
