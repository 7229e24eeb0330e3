//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package capture

import (
	"fmt"
	"image"
)

func portalScreenshot() (*image.RGBA, error) {
	return nil, newError("portal screenshot", KindUnsupported, fmt.Errorf("portal screenshot is not supported on this platform"))
}
