//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

// Package clipboard publishes captures on the desktop clipboard as PNG.
package clipboard

import (
	"fmt"
	"image"
)

func WriteImage(image.Image) (<-chan struct{}, error) {
	return nil, fmt.Errorf("clipboard image operations are not supported on this platform")
}
