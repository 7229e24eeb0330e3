package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/example/xgrab/internal/pixfmt"
)

// Drawable identifies a server side surface whose pixels can be fetched.
type Drawable uint32

// RootDrawable asks the backend for the root window of the default screen.
const RootDrawable Drawable = 0

// RawImage is an undecoded image reply. It lives only for one capture call.
type RawImage struct {
	Data   []byte
	Format pixfmt.Format
	Width  int
	Height int
}

type platformBackend interface {
	ListMonitors() ([]MonitorInfo, error)
	ListWindows() ([]WindowInfo, error)
	MonitorRect(output uint32) (image.Rectangle, error)
	WindowSize(id uint32) (width, height int, err error)
	FetchImage(d Drawable, rect image.Rectangle) (RawImage, error)
}

var backend = newBackend()

var (
	errNoMonitors = errors.New("no monitors available")
	errNoWindows  = errors.New("no windows available")
)

// MonitorInfo describes an individual monitor in the display layout.
type MonitorInfo struct {
	Index   int             `json:"index" yaml:"index"`
	Name    string          `json:"name" yaml:"name"`
	Output  uint32          `json:"output" yaml:"output"`
	Rect    image.Rectangle `json:"rect" yaml:"-"`
	Primary bool            `json:"primary" yaml:"primary"`
}

// WindowInfo describes a top-level window available for capture.
type WindowInfo struct {
	Index      int             `json:"index" yaml:"index"`
	ID         uint32          `json:"id" yaml:"id"`
	Title      string          `json:"title" yaml:"title"`
	Class      string          `json:"class" yaml:"class"`
	Instance   string          `json:"instance" yaml:"instance"`
	PID        uint32          `json:"pid" yaml:"pid"`
	Executable string          `json:"executable" yaml:"executable"`
	Rect       image.Rectangle `json:"rect" yaml:"-"`
	Monitor    int             `json:"monitor" yaml:"monitor"`
	Active     bool            `json:"active" yaml:"active"`
}

// ListMonitors retrieves all monitors using the platform backend.
func ListMonitors() ([]MonitorInfo, error) {
	return backend.ListMonitors()
}

// ListWindows retrieves the available top-level windows using the platform backend.
func ListWindows() ([]WindowInfo, error) {
	return backend.ListWindows()
}

// FindMonitor resolves a monitor selector against the provided list.
// Accepted forms are "", "primary", "#n", "n" and a name substring.
func FindMonitor(monitors []MonitorInfo, selector string) (MonitorInfo, error) {
	if len(monitors) == 0 {
		return MonitorInfo{}, errNoMonitors
	}
	lower := strings.ToLower(strings.TrimSpace(selector))
	switch lower {
	case "":
		return monitors[0], nil
	case "primary":
		for _, mon := range monitors {
			if mon.Primary {
				return mon, nil
			}
		}
		return monitors[0], nil
	}
	if idx, err := strconv.Atoi(strings.TrimPrefix(lower, "#")); err == nil {
		if idx < 0 || idx >= len(monitors) {
			return MonitorInfo{}, fmt.Errorf("monitor index %d out of range", idx)
		}
		return monitors[idx], nil
	}
	for _, mon := range monitors {
		if strings.Contains(strings.ToLower(mon.Name), lower) {
			return mon, nil
		}
	}
	return MonitorInfo{}, fmt.Errorf("monitor %q not found", selector)
}

type windowMatcher struct {
	prefix string
	label  string
	match  func(win WindowInfo, needle string) bool
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

var windowMatchers = []windowMatcher{
	{"exec:", "exec", func(w WindowInfo, n string) bool { return containsFold(w.Executable, n) }},
	{"class:", "class", func(w WindowInfo, n string) bool {
		return containsFold(w.Class, n) || containsFold(w.Instance, n)
	}},
	{"title:", "title", func(w WindowInfo, n string) bool { return containsFold(w.Title, n) }},
	{"name:", "title", func(w WindowInfo, n string) bool { return containsFold(w.Title, n) }},
}

// SelectWindow matches a selector string against the list of windows.
//
// An empty selector picks the active window, falling back to the bottom of
// the stacking order. Prefixed selectors are index:, id:, pid:, exec:,
// class:, title: and name:. Bare integers are indexes, 0x values are ids
// and anything else is a substring of title, executable or class.
func SelectWindow(selector string, windows []WindowInfo) (WindowInfo, error) {
	if len(windows) == 0 {
		return WindowInfo{}, errNoWindows
	}
	sel := strings.TrimSpace(selector)
	lower := strings.ToLower(sel)
	switch {
	case sel == "":
		if win, ok := activeWindow(windows); ok {
			return win, nil
		}
		return windows[len(windows)-1], nil
	case lower == "active":
		if win, ok := activeWindow(windows); ok {
			return win, nil
		}
		return WindowInfo{}, fmt.Errorf("no active window detected")
	case strings.HasPrefix(lower, "index:"):
		return windowAt(windows, strings.TrimSpace(lower[len("index:"):]))
	case strings.HasPrefix(lower, "id:"):
		id, err := parseWindowID(lower[len("id:"):])
		if err != nil {
			return WindowInfo{}, err
		}
		return windowByID(windows, id)
	case strings.HasPrefix(lower, "pid:"):
		val := strings.TrimSpace(lower[len("pid:"):])
		pid, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return WindowInfo{}, fmt.Errorf("invalid pid %q", val)
		}
		for _, win := range windows {
			if win.PID == uint32(pid) {
				return win, nil
			}
		}
		return WindowInfo{}, fmt.Errorf("window with pid %d not found", pid)
	}
	for _, m := range windowMatchers {
		if !strings.HasPrefix(lower, m.prefix) {
			continue
		}
		needle := strings.TrimSpace(lower[len(m.prefix):])
		for _, win := range windows {
			if m.match(win, needle) {
				return win, nil
			}
		}
		return WindowInfo{}, fmt.Errorf("window with %s %q not found", m.label, strings.TrimSpace(sel[len(m.prefix):]))
	}
	if _, err := strconv.Atoi(sel); err == nil {
		return windowAt(windows, sel)
	}
	if strings.HasPrefix(lower, "0x") {
		if id, err := parseWindowID(sel); err == nil {
			return windowByID(windows, id)
		}
	}
	for _, win := range windows {
		if containsFold(win.Title, lower) || containsFold(win.Executable, lower) ||
			containsFold(win.Class, lower) || containsFold(win.Instance, lower) {
			return win, nil
		}
	}
	return WindowInfo{}, fmt.Errorf("no window matched %q", selector)
}

func activeWindow(windows []WindowInfo) (WindowInfo, bool) {
	for _, win := range windows {
		if win.Active {
			return win, true
		}
	}
	return WindowInfo{}, false
}

func windowAt(windows []WindowInfo, val string) (WindowInfo, error) {
	idx, err := strconv.Atoi(val)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("invalid index %q", val)
	}
	if idx < 0 || idx >= len(windows) {
		return WindowInfo{}, fmt.Errorf("window index %d out of range", idx)
	}
	return windows[idx], nil
}

func windowByID(windows []WindowInfo, id uint32) (WindowInfo, error) {
	for _, win := range windows {
		if win.ID == id {
			return win, nil
		}
	}
	return WindowInfo{}, fmt.Errorf("window id 0x%x not found", id)
}

func parseWindowID(val string) (uint32, error) {
	v := strings.TrimSpace(val)
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v, base = v[2:], 16
	}
	parsed, err := strconv.ParseUint(v, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q", val)
	}
	return uint32(parsed), nil
}
