// Package platform delivers desktop notifications.
package platform

import "time"

// AppName is reported to the notification server.
const AppName = "xgrab"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// IconPath, when non-empty, points to an image file the notification center
	// should display with the notification if supported by the platform.
	IconPath string
	// Category is a freedesktop notification category such as
	// "transfer.complete".
	Category string
	// Timeout of zero uses five seconds.
	Timeout time.Duration
}

func (o Options) timeout() int64 {
	if o.Timeout <= 0 {
		return 5000
	}
	return o.Timeout.Milliseconds()
}
