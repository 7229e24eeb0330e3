//go:build (linux || freebsd || openbsd || netbsd || dragonfly) && cgo

// Package clipboard publishes captures on the desktop clipboard as PNG.
package clipboard

import (
	"bytes"
	"errors"
	"image"
	"os"
	"sync"

	"golang.design/x/clipboard"

	"github.com/example/xgrab/internal/imageio"
	"github.com/example/xgrab/internal/logger"
)

var (
	initOnce     sync.Once
	initErr      error
	errNoDisplay = errors.New("clipboard initialization requires DISPLAY or WAYLAND_DISPLAY")
)

func ensureInit() error {
	initOnce.Do(func() {
		if !hasDisplay() {
			initErr = errNoDisplay
			return
		}
		initErr = clipboard.Init()
	})
	return initErr
}

func hasDisplay() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// WriteImage encodes img as PNG and publishes it to the clipboard. The
// returned channel is closed once another client takes the selection.
func WriteImage(img image.Image) (<-chan struct{}, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, imageio.PNG); err != nil {
		return nil, err
	}
	logger.WithComponent("clipboard").Debug().Int("bytes", buf.Len()).Msg("publishing image/png")
	return clipboard.Write(clipboard.FmtImage, buf.Bytes()), nil
}
