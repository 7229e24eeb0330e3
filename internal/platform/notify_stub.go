//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package platform

// Notify is a no-op on platforms without a session bus.
func Notify(title, body string, opts Options) (uint32, error) {
	return 0, nil
}
