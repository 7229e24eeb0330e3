//go:build linux || freebsd || openbsd || netbsd || dragonfly

package platform

import (
	"github.com/godbus/dbus/v5"
)

const (
	notifyDest = "org.freedesktop.Notifications"
	notifyPath = "/org/freedesktop/Notifications"
)

// Notify sends a desktop notification over the Freedesktop.org Notifications interface.
func Notify(title, body string, opts Options) (uint32, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var id uint32
	err = conn.Object(notifyDest, notifyPath).Call(notifyDest+".Notify", 0,
		AppName, uint32(0), opts.IconPath, title, body, []string{}, notifyHints(opts), int32(opts.timeout())).Store(&id)
	return id, err
}

func notifyHints(opts Options) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{}
	if opts.Category != "" {
		hints["category"] = dbus.MakeVariant(opts.Category)
	}
	if opts.IconPath != "" {
		hints["image-path"] = dbus.MakeVariant(opts.IconPath)
	}
	return hints
}
