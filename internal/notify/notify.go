// Package notify turns capture, save and copy events into desktop
// notifications.
package notify

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/xgrab/internal/config"
	"github.com/example/xgrab/internal/imageio"
	"github.com/example/xgrab/internal/logger"
	"github.com/example/xgrab/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventCapture emits a notification when a capture completes.
	EventCapture Event = "capture"
	// EventSave emits a notification when an image is persisted to disk.
	EventSave Event = "save"
	// EventCopy emits a notification when data is copied to the clipboard.
	EventCopy Event = "copy"
)

var categories = map[Event]string{
	EventCapture: "transfer.complete",
	EventSave:    "transfer.complete",
	EventCopy:    "transfer",
}

// Preferences describes notification text. Templates take one %s for the
// event detail.
type Preferences struct {
	Title     string
	Templates map[Event]string
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "xgrab",
		Templates: map[Event]string{
			EventCapture: "Captured %s",
			EventSave:    "Saved %s",
			EventCopy:    "Copied %s to clipboard",
		},
	}
}

// LoadPreferences applies XGRAB_NOTIFY_* environment overrides to the defaults.
func LoadPreferences(getenv func(string) string) Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(getenv("XGRAB_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	for event, key := range map[Event]string{
		EventCapture: "XGRAB_NOTIFY_CAPTURE_TEXT",
		EventSave:    "XGRAB_NOTIFY_SAVE_TEXT",
		EventCopy:    "XGRAB_NOTIFY_COPY_TEXT",
	} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			prefs.Templates[event] = v
		}
	}
	return prefs
}

var sendFn = platform.Notify

// Notifier sends OS-level notifications for enabled events. A nil Notifier
// sends nothing.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
}

// New creates a Notifier with the events enabled in cfg.
func New(prefs Preferences, cfg config.Notify) *Notifier {
	templates := make(map[Event]string, len(prefs.Templates))
	for k, v := range prefs.Templates {
		templates[k] = v
	}
	return &Notifier{
		prefs: Preferences{Title: prefs.Title, Templates: templates},
		enabled: map[Event]bool{
			EventCapture: cfg.Capture,
			EventSave:    cfg.Save,
			EventCopy:    cfg.Copy,
		},
	}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Capture sends a capture notification with the image as icon.
func (n *Notifier) Capture(detail string, img image.Image) {
	if !n.enabledFor(EventCapture) {
		return
	}
	opts := platform.Options{}
	if img != nil {
		if path, cleanup, err := createPreview(img); err != nil {
			logger.WithComponent("notify").Warn().Err(err).Msg("notification preview")
		} else {
			defer cleanup()
			opts.IconPath = path
		}
	}
	n.dispatch(EventCapture, detail, opts)
}

// Save sends a save notification naming the written file.
func (n *Notifier) Save(path string) {
	if !n.enabledFor(EventSave) {
		return
	}
	detail := strings.TrimSpace(path)
	opts := platform.Options{}
	if abs, err := filepath.Abs(path); err == nil {
		detail = abs
		if _, statErr := os.Stat(abs); statErr == nil {
			opts.IconPath = abs
		}
	}
	n.dispatch(EventSave, detail, opts)
}

// Copy sends a clipboard notification.
func (n *Notifier) Copy(detail string) {
	if !n.enabledFor(EventCopy) {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = "image"
	}
	n.dispatch(EventCopy, detail, platform.Options{})
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	template := strings.TrimSpace(n.prefs.Templates[event])
	if template == "" {
		return
	}
	body := strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	if body == "" {
		return
	}
	opts.Category = categories[event]
	log := logger.WithComponent("notify")
	id, err := sendFn(n.prefs.Title, body, opts)
	if err != nil {
		log.Warn().Err(err).Str("event", string(event)).Msg("notification failed")
		return
	}
	log.Debug().Str("event", string(event)).Uint32("id", id).Msg("notification sent")
}

// createPreview writes a small PNG for the notification icon.
func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "xgrab-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := imageio.Encode(f, img, imageio.PNG); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.WithComponent("notify").Warn().Err(err).Msg("remove preview")
		}
	}
	return path, cleanup, nil
}
