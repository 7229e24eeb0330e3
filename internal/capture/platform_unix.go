//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
)

type x11Backend struct{}

func newBackend() platformBackend {
	return x11Backend{}
}

func runningOnWayland() bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")), "wayland") {
		return true
	}
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

// openX connects to the X server and resolves the default screen. The caller
// owns the connection and must close it on every return path.
func openX(op string) (*xgb.Conn, *xproto.SetupInfo, *xproto.ScreenInfo, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, nil, nil, newError(op, KindConnection, fmt.Errorf("connect X server: %w", err))
	}
	setup := xproto.Setup(conn)
	if setup == nil {
		conn.Close()
		return nil, nil, nil, newError(op, KindConnection, fmt.Errorf("xproto setup unavailable"))
	}
	screen := setup.DefaultScreen(conn)
	if screen == nil {
		conn.Close()
		return nil, nil, nil, newError(op, KindConnection, fmt.Errorf("xproto screen unavailable"))
	}
	return conn, setup, screen, nil
}

func (x11Backend) FetchImage(d Drawable, rect image.Rectangle) (RawImage, error) {
	conn, setup, screen, err := openX("get image")
	if err != nil {
		return RawImage{}, err
	}
	defer conn.Close()

	drawable := xproto.Drawable(d)
	if d == RootDrawable {
		drawable = xproto.Drawable(screen.Root)
	}
	reply, err := xproto.GetImage(conn, xproto.ImageFormatZPixmap, drawable,
		int16(rect.Min.X), int16(rect.Min.Y), uint16(rect.Dx()), uint16(rect.Dy()),
		^uint32(0)).Reply()
	if err != nil {
		return RawImage{}, newError("get image", KindRequest, err)
	}
	return rawFromReply(setup, reply, rect.Dx(), rect.Dy())
}

func (x11Backend) ListMonitors() ([]MonitorInfo, error) {
	conn, _, screen, err := openX("list monitors")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	monitors, err := fetchMonitors(conn, screen.Root)
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, errNoMonitors
	}
	return monitors, nil
}

func (x11Backend) MonitorRect(output uint32) (image.Rectangle, error) {
	conn, _, screen, err := openX("monitor geometry")
	if err != nil {
		return image.Rectangle{}, err
	}
	defer conn.Close()

	if err := randr.Init(conn); err != nil {
		return image.Rectangle{}, newError("monitor geometry", KindRequest, fmt.Errorf("init randr: %w", err))
	}
	res, err := randr.GetScreenResourcesCurrent(conn, screen.Root).Reply()
	if err != nil {
		return image.Rectangle{}, newError("monitor geometry", KindRequest, fmt.Errorf("randr screen resources: %w", err))
	}
	rect, ok := outputRect(conn, randr.Output(output), res.ConfigTimestamp)
	if !ok {
		return image.Rectangle{}, newError("monitor geometry", KindRequest, fmt.Errorf("output %d is not active", output))
	}
	return rect, nil
}

func (x11Backend) ListWindows() ([]WindowInfo, error) {
	conn, _, screen, err := openX("list windows")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	monitors, _ := fetchMonitors(conn, screen.Root)
	activeID := readWindowProperty(conn, screen.Root, "_NET_ACTIVE_WINDOW")

	windows, err := fetchWindows(conn, screen.Root, monitors, activeID)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, errNoWindows
	}
	return windows, nil
}

func (x11Backend) WindowSize(id uint32) (int, int, error) {
	conn, _, _, err := openX("window geometry")
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	geom, err := xproto.GetGeometry(conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return 0, 0, newError("window geometry", KindRequest, err)
	}
	return int(geom.Width), int(geom.Height), nil
}

func fetchMonitors(conn *xgb.Conn, root xproto.Window) ([]MonitorInfo, error) {
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("init randr: %w", err)
	}
	res, err := randr.GetScreenResourcesCurrent(conn, root).Reply()
	if err != nil {
		return nil, fmt.Errorf("randr screen resources: %w", err)
	}
	primaryOutput := randr.Output(0)
	if primary, err := randr.GetOutputPrimary(conn, root).Reply(); err == nil {
		primaryOutput = primary.Output
	}
	monitors := make([]MonitorInfo, 0, len(res.Outputs))
	for _, output := range res.Outputs {
		rect, ok := outputRect(conn, output, res.ConfigTimestamp)
		if !ok {
			continue
		}
		info, err := randr.GetOutputInfo(conn, output, res.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		monitors = append(monitors, MonitorInfo{
			Index:   len(monitors),
			Name:    strings.TrimSpace(string(info.Name)),
			Output:  uint32(output),
			Rect:    rect,
			Primary: output == primaryOutput,
		})
	}
	return monitors, nil
}

// outputRect returns the desktop rectangle scanned out by a connected output.
func outputRect(conn *xgb.Conn, output randr.Output, ts xproto.Timestamp) (image.Rectangle, bool) {
	info, err := randr.GetOutputInfo(conn, output, ts).Reply()
	if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
		return image.Rectangle{}, false
	}
	crtc, err := randr.GetCrtcInfo(conn, info.Crtc, ts).Reply()
	if err != nil {
		return image.Rectangle{}, false
	}
	x, y := int(crtc.X), int(crtc.Y)
	return image.Rect(x, y, x+int(crtc.Width), y+int(crtc.Height)), true
}

func fetchWindows(conn *xgb.Conn, root xproto.Window, monitors []MonitorInfo, activeID uint32) ([]WindowInfo, error) {
	ids := readWindowList(conn, root, "_NET_CLIENT_LIST_STACKING")
	if len(ids) == 0 {
		ids = readWindowList(conn, root, "_NET_CLIENT_LIST")
	}
	windows := make([]WindowInfo, 0, len(ids))
	for idx := len(ids) - 1; idx >= 0; idx-- {
		info, err := describeWindow(conn, root, ids[idx])
		if err != nil {
			continue
		}
		info.Index = len(windows)
		info.Active = info.ID == activeID
		info.Monitor = monitorForRect(info.Rect, monitors)
		windows = append(windows, info)
	}
	return windows, nil
}

func describeWindow(conn *xgb.Conn, root xproto.Window, win xproto.Window) (WindowInfo, error) {
	rect, err := windowRect(conn, root, win)
	if err != nil {
		return WindowInfo{}, err
	}
	title := readTextProperty(conn, win, "_NET_WM_NAME", "UTF8_STRING")
	if title == "" {
		title = readTextProperty(conn, win, "WM_NAME", "STRING")
	}
	class, instance := readClass(conn, win)
	pid := readCardinalProperty(conn, win, "_NET_WM_PID")
	return WindowInfo{
		ID:         uint32(win),
		Title:      title,
		Class:      class,
		Instance:   instance,
		PID:        pid,
		Executable: readExecutable(pid),
		Rect:       rect,
		Monitor:    -1,
	}, nil
}

func windowRect(conn *xgb.Conn, root xproto.Window, win xproto.Window) (image.Rectangle, error) {
	geo, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	trans, err := xproto.TranslateCoordinates(conn, win, root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	x, y := int(trans.DstX), int(trans.DstY)
	return image.Rect(x, y, x+int(geo.Width), y+int(geo.Height)), nil
}

func monitorForRect(rect image.Rectangle, monitors []MonitorInfo) int {
	if len(monitors) == 0 {
		return -1
	}
	center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
	for _, mon := range monitors {
		if center.In(mon.Rect) {
			return mon.Index
		}
	}
	return monitors[0].Index
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func getProperty(conn *xgb.Conn, win xproto.Window, name string, typ xproto.Atom, length uint32) *xproto.GetPropertyReply {
	atom, err := internAtom(conn, name)
	if err != nil || atom == 0 {
		return nil
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, typ, 0, length).Reply()
	if err != nil || reply.ValueLen == 0 {
		return nil
	}
	return reply
}

func readWindowList(conn *xgb.Conn, root xproto.Window, name string) []xproto.Window {
	reply := getProperty(conn, root, name, xproto.AtomWindow, 1<<16)
	if reply == nil || reply.Format != 32 {
		return nil
	}
	ids := make([]xproto.Window, 0, reply.ValueLen)
	for i := 0; i < int(reply.ValueLen); i++ {
		ids = append(ids, xproto.Window(xgb.Get32(reply.Value[i*4:])))
	}
	return ids
}

func readWindowProperty(conn *xgb.Conn, win xproto.Window, name string) uint32 {
	reply := getProperty(conn, win, name, xproto.AtomWindow, 1)
	if reply == nil || reply.Format != 32 {
		return 0
	}
	return xgb.Get32(reply.Value)
}

func readCardinalProperty(conn *xgb.Conn, win xproto.Window, name string) uint32 {
	reply := getProperty(conn, win, name, xproto.AtomCardinal, 1)
	if reply == nil || reply.Format != 32 {
		return 0
	}
	return xgb.Get32(reply.Value)
}

func readTextProperty(conn *xgb.Conn, win xproto.Window, name, typeName string) string {
	typ := xproto.Atom(xproto.AtomString)
	if typeName != "STRING" {
		atom, err := internAtom(conn, typeName)
		if err != nil {
			return ""
		}
		typ = atom
	}
	reply := getProperty(conn, win, name, typ, 1<<16)
	if reply == nil {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

// readClass splits WM_CLASS into its class and instance parts.
func readClass(conn *xgb.Conn, win xproto.Window) (class string, instance string) {
	reply := getProperty(conn, win, "WM_CLASS", xproto.AtomString, 64)
	if reply == nil {
		return "", ""
	}
	var vals []string
	for _, p := range bytes.Split(reply.Value, []byte{0}) {
		if len(p) > 0 {
			vals = append(vals, string(p))
		}
	}
	switch len(vals) {
	case 0:
		return "", ""
	case 1:
		return vals[0], vals[0]
	default:
		return vals[1], vals[0]
	}
}

func readExecutable(pid uint32) string {
	if pid == 0 {
		return ""
	}
	proc := filepath.Join("/proc", fmt.Sprint(pid))
	if data, err := os.ReadFile(filepath.Join(proc, "comm")); err == nil {
		return strings.TrimSpace(string(data))
	}
	if exe, err := os.Readlink(filepath.Join(proc, "exe")); err == nil {
		return filepath.Base(exe)
	}
	return ""
}
