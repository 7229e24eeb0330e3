//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package capture

import (
	"fmt"
	"image"
)

type unsupportedBackend struct{}

func newBackend() platformBackend {
	return unsupportedBackend{}
}

func (unsupportedBackend) ListMonitors() ([]MonitorInfo, error) {
	return nil, newError("list monitors", KindUnsupported, fmt.Errorf("monitor listing is not supported on this platform"))
}

func (unsupportedBackend) ListWindows() ([]WindowInfo, error) {
	return nil, newError("list windows", KindUnsupported, fmt.Errorf("window listing is not supported on this platform"))
}

func (unsupportedBackend) MonitorRect(uint32) (image.Rectangle, error) {
	return image.Rectangle{}, newError("monitor geometry", KindUnsupported, fmt.Errorf("monitor geometry is not supported on this platform"))
}

func (unsupportedBackend) WindowSize(uint32) (int, int, error) {
	return 0, 0, newError("window geometry", KindUnsupported, fmt.Errorf("window geometry is not supported on this platform"))
}

func (unsupportedBackend) FetchImage(Drawable, image.Rectangle) (RawImage, error) {
	return RawImage{}, newError("get image", KindUnsupported, fmt.Errorf("image capture is not supported on this platform"))
}

func runningOnWayland() bool { return false }
