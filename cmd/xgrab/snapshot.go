package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/example/xgrab/internal/capture"
	"github.com/example/xgrab/internal/clipboard"
	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/imageio"
	"github.com/example/xgrab/internal/logger"
	"github.com/example/xgrab/internal/preview"
)

var (
	listMonitorsFn     = capture.ListMonitors
	listWindowsFn      = capture.ListWindows
	captureMonitorFn   = capture.CaptureMonitor
	captureRegionFn    = capture.CaptureRegion
	captureRegionRGBFn = capture.CaptureRegionRGB
	captureWindowFn    = capture.CaptureWindow
	captureWindowRGBFn = capture.CaptureWindowRGB
	clipboardWriteFn   = clipboard.WriteImage
	previewFn          = preview.Show
	nowFn              = time.Now
)

type snapshotCmd struct {
	output      string
	format      string
	stdout      bool
	toClipboard bool
	preview     bool
	rgb         bool
	mode        string
	display     string
	rect        string
	selector    string
	*root
	fs *flag.FlagSet
}

func (s *snapshotCmd) FlagSet() *flag.FlagSet {
	return s.fs
}

func parseSnapshotCmd(args []string, r *root) (*snapshotCmd, error) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	s := &snapshotCmd{root: r, fs: fs}
	fs.Usage = usageFunc(s)
	fs.StringVar(&s.output, "output", "", "write the capture to this file path (default xgrab-<time>.<format> in save_dir)")
	fs.StringVar(&s.format, "format", "", "image format: png, bmp or tiff (default from -output or config)")
	fs.BoolVar(&s.stdout, "stdout", false, "write image data to stdout")
	fs.BoolVar(&s.toClipboard, "to-clipboard", false, "copy the capture to the clipboard as PNG and serve it until another application takes it")
	fs.BoolVar(&s.preview, "preview", false, "show the capture in a window before writing it")
	fs.BoolVar(&s.rgb, "rgb", r.config.Capture.RGB, "capture without an alpha channel")
	fs.StringVar(&s.display, "display", "", "monitor selector for region captures")
	fs.StringVar(&s.rect, "rect", "", "region rectangle x,y,width,height relative to the monitor")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	operands := fs.Args()
	if len(operands) == 0 {
		return nil, &UsageError{of: s}
	}
	s.mode = strings.ToLower(strings.TrimSpace(operands[0]))
	// Flags may also follow the mode.
	if err := fs.Parse(operands[1:]); err != nil {
		return nil, err
	}
	switch s.mode {
	case "monitor", "screen":
		s.mode = "monitor"
	case "window":
	case "region":
		if strings.TrimSpace(s.rect) == "" && fs.NArg() == 0 {
			return nil, fmt.Errorf("region capture needs -rect x,y,width,height")
		}
	default:
		return nil, &UsageError{of: s}
	}
	if fs.NArg() > 0 {
		arg := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if s.mode == "region" && s.rect == "" {
			s.rect = arg
		} else {
			s.selector = arg
		}
	}
	if s.toClipboard && s.stdout {
		return nil, fmt.Errorf("-stdout cannot be used with -to-clipboard")
	}
	if s.format != "" {
		if _, err := imageio.ParseFormat(s.format); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *snapshotCmd) Run() error {
	img, err := s.capture()
	if err != nil {
		return fmt.Errorf("failed to capture %s: %w", s.mode, err)
	}
	detail := s.describeCapture()
	s.root.notifyCapture(detail, img)

	if s.preview {
		if err := previewFn(windowTitle(detail, img.Bounds().Size()), img); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}
	if s.toClipboard {
		lost, err := clipboardWriteFn(img)
		if err != nil {
			return fmt.Errorf("copy PNG to clipboard: %w", err)
		}
		fmt.Fprintf(s.errOut, "copied %s to clipboard\n", detail)
		s.root.notifyCopy(detail)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s.holdClipboard(ctx, lost)
		return nil
	}

	format := s.outputFormat()
	if s.stdout {
		if err := imageio.Encode(s.out, img, format); err != nil {
			return fmt.Errorf("write %s to stdout: %w", strings.ToUpper(string(format)), err)
		}
		fmt.Fprintf(s.errOut, "wrote %s data to stdout\n", strings.ToUpper(string(format)))
		return nil
	}
	saved, err := imageio.Save(s.outputPath(format), img, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.errOut, "saved %s\n", saved)
	s.root.notifySave(saved)
	return nil
}

// holdClipboard keeps the process alive while it owns the X selection. The
// selection is served by this process and disappears when it exits.
func (s *snapshotCmd) holdClipboard(ctx context.Context, lost <-chan struct{}) {
	if lost == nil {
		return
	}
	fmt.Fprintln(s.errOut, "serving clipboard until another application takes it (Ctrl+C to stop)")
	select {
	case <-lost:
		logger.WithComponent("cli").Debug().Msg("clipboard selection taken")
	case <-ctx.Done():
		logger.WithComponent("cli").Debug().Msg("clipboard hold interrupted")
	}
}

func (s *snapshotCmd) capture() (image.Image, error) {
	switch s.mode {
	case "monitor":
		mon, err := s.monitor(s.selector)
		if err != nil {
			return nil, err
		}
		if s.rgb {
			return rgb(captureRegionRGBFn(mon, 0, 0, mon.Rect.Dx(), mon.Rect.Dy()))
		}
		return rgba(captureMonitorFn(mon))
	case "region":
		x, y, w, h, err := parseRect(s.rect)
		if err != nil {
			return nil, err
		}
		mon, err := s.monitor(s.display)
		if err != nil {
			return nil, err
		}
		if s.rgb {
			return rgb(captureRegionRGBFn(mon, x, y, w, h))
		}
		return rgba(captureRegionFn(mon, x, y, w, h))
	case "window":
		windows, err := listWindowsFn()
		if err != nil {
			return nil, err
		}
		win, err := capture.SelectWindow(s.selector, windows)
		if err != nil {
			return nil, err
		}
		if s.rgb {
			return rgb(captureWindowRGBFn(win))
		}
		return rgba(captureWindowFn(win))
	default:
		return nil, errors.New("unsupported capture mode")
	}
}

func (s *snapshotCmd) monitor(selector string) (capture.MonitorInfo, error) {
	monitors, err := listMonitorsFn()
	if err != nil {
		return capture.MonitorInfo{}, err
	}
	return capture.FindMonitor(monitors, selector)
}

// rgba and rgb keep typed nil images from escaping as non-nil interfaces.
func rgba(img *image.RGBA, err error) (image.Image, error) {
	if err != nil {
		return nil, err
	}
	return img, nil
}

func rgb(img *frame.RGB, err error) (image.Image, error) {
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *snapshotCmd) describeCapture() string {
	switch s.mode {
	case "monitor":
		if t := strings.TrimSpace(s.selector); t != "" {
			return fmt.Sprintf("monitor %s", t)
		}
	case "window":
		if t := strings.TrimSpace(s.selector); t != "" {
			return fmt.Sprintf("window %s", t)
		}
	case "region":
		if r := strings.TrimSpace(s.rect); r != "" {
			return fmt.Sprintf("region %s", r)
		}
	}
	if s.mode == "" {
		return "capture"
	}
	return s.mode
}

func (s *snapshotCmd) outputFormat() imageio.Format {
	if s.format != "" {
		f, _ := imageio.ParseFormat(s.format)
		return f
	}
	fallback, err := imageio.ParseFormat(s.config.Format)
	if err != nil {
		fallback = imageio.PNG
	}
	if s.output != "" {
		return imageio.FormatFromPath(s.output, fallback)
	}
	return fallback
}

func (s *snapshotCmd) outputPath(f imageio.Format) string {
	if s.output != "" {
		return s.output
	}
	name := fmt.Sprintf("xgrab-%s.%s", nowFn().Format("20060102-150405"), f)
	if dir := strings.TrimSpace(s.config.SaveDir); dir != "" {
		return filepath.Join(dir, name)
	}
	return name
}

// parseRect reads "x,y,width,height".
func parseRect(val string) (x, y, w, h int, err error) {
	parts := strings.Split(val, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid region %q (want x,y,width,height)", val)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		v, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid region %q", val)
		}
		nums[i] = v
	}
	return nums[0], nums[1], nums[2], nums[3], nil
}
