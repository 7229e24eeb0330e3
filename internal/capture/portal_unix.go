//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/example/xgrab/internal/logger"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	portalResponse  = "org.freedesktop.portal.Request.Response"
	portalWaitLimit = 2 * time.Minute
)

func newPortalHandleToken() string {
	return "xgrab_" + uuid.NewString()[:8]
}

// portalScreenshotOptions never asks the user to pick an area; the caller
// crops the desktop itself.
func portalScreenshotOptions(token string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"interactive":  dbus.MakeVariant(false),
		"modal":        dbus.MakeVariant(false),
		"handle_token": dbus.MakeVariant(token),
	}
}

// portalRequestPath is the Request object the portal creates for token when
// called from the connection named sender.
func portalRequestPath(sender, token string) dbus.ObjectPath {
	sender = strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
	return dbus.ObjectPath(portalPath + "/request/" + sender + "/" + token)
}

func portalResponseRule(handle dbus.ObjectPath) string {
	return fmt.Sprintf("type='signal',interface='org.freedesktop.portal.Request',member='Response',path='%s'", handle)
}

// portalScreenshot asks xdg-desktop-portal for a full desktop screenshot.
func portalScreenshot() (*image.RGBA, error) {
	const op = "portal screenshot"
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, newError(op, KindConnection, fmt.Errorf("dbus connect: %w", err))
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.WithComponent("portal").Warn().Err(cerr).Msg("dbus close")
		}
	}()

	sigc := make(chan *dbus.Signal, 4)
	conn.Signal(sigc)
	defer conn.RemoveSignal(sigc)

	// Subscribe before calling so a fast Response is not missed.
	names := conn.Names()
	if len(names) == 0 {
		return nil, newError(op, KindConnection, fmt.Errorf("dbus connection has no unique name"))
	}
	token := newPortalHandleToken()
	handle := portalRequestPath(names[0], token)
	if err := addResponseMatch(conn, handle); err != nil {
		return nil, newError(op, KindRequest, err)
	}
	defer removeResponseMatch(conn, handle)

	var returned dbus.ObjectPath
	call := conn.Object(portalDest, portalPath).Call("org.freedesktop.portal.Screenshot.Screenshot", 0, "", portalScreenshotOptions(token))
	if call.Err != nil {
		return nil, newError(op, KindRequest, call.Err)
	}
	if err := call.Store(&returned); err != nil {
		return nil, newError(op, KindRequest, fmt.Errorf("response handle: %w", err))
	}
	if returned != handle {
		// Older portals ignore handle_token.
		logger.WithComponent("portal").Debug().Str("expected", string(handle)).Str("got", string(returned)).Msg("request handle differs")
		if err := addResponseMatch(conn, returned); err != nil {
			return nil, newError(op, KindRequest, err)
		}
		defer removeResponseMatch(conn, returned)
		handle = returned
	}

	timeout := time.After(portalWaitLimit)
	for {
		select {
		case sig, ok := <-sigc:
			if !ok {
				return nil, newError(op, KindConnection, fmt.Errorf("dbus connection closed"))
			}
			if sig.Path != handle || sig.Name != portalResponse {
				continue
			}
			path, err := portalResult(sig.Body)
			if err != nil {
				return nil, newError(op, KindRequest, err)
			}
			img, err := loadPNG(path)
			if err != nil {
				return nil, newError(op, KindRequest, err)
			}
			return img, nil
		case <-timeout:
			return nil, newError(op, KindRequest, fmt.Errorf("no response after %s", portalWaitLimit))
		}
	}
}

func addResponseMatch(conn *dbus.Conn, handle dbus.ObjectPath) error {
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, portalResponseRule(handle)).Err; err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func removeResponseMatch(conn *dbus.Conn, handle dbus.ObjectPath) {
	conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, portalResponseRule(handle))
}

// portalResult extracts the screenshot file path from a Response signal body.
func portalResult(body []interface{}) (string, error) {
	if len(body) < 2 {
		return "", fmt.Errorf("malformed response")
	}
	if code, ok := body[0].(uint32); ok && code != 0 {
		return "", fmt.Errorf("request denied (response %d)", code)
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return "", fmt.Errorf("malformed response results")
	}
	uriVar, ok := results["uri"]
	if !ok {
		return "", fmt.Errorf("response missing image uri")
	}
	uri, ok := uriVar.Value().(string)
	if !ok {
		return "", fmt.Errorf("response uri is %T", uriVar.Value())
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("unsupported image uri %q", uri)
	}
	return u.Path, nil
}

func loadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		f.Close()
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WithComponent("portal").Warn().Err(err).Str("path", path).Msg("remove screenshot")
		}
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(rgba, image.Point{}, img, b, xdraw.Src, nil)
	return rgba, nil
}
