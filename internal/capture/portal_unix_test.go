//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestPortalScreenshotOptions(t *testing.T) {
	values := portalScreenshotOptions("test-token")
	if boolVariant(t, values, "interactive") {
		t.Fatalf("interactive should be false")
	}
	if boolVariant(t, values, "modal") {
		t.Fatalf("modal should be false")
	}
	if got := stringVariant(t, values, "handle_token"); got != "test-token" {
		t.Fatalf("handle_token = %q, want %q", got, "test-token")
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 options, got %d", len(values))
	}
}

func TestPortalRequestPath(t *testing.T) {
	got := portalRequestPath(":1.42", "xgrab_abcd1234")
	want := dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/xgrab_abcd1234")
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
	if !got.IsValid() {
		t.Fatalf("path %q is not a valid object path", got)
	}
	if rule := portalResponseRule(got); !strings.Contains(rule, "path='"+string(want)+"'") {
		t.Fatalf("rule = %q", rule)
	}
}

func TestPortalHandleToken(t *testing.T) {
	a, b := newPortalHandleToken(), newPortalHandleToken()
	if !strings.HasPrefix(a, "xgrab_") || len(a) != len("xgrab_")+8 {
		t.Fatalf("token %q", a)
	}
	if a == b {
		t.Fatalf("tokens repeat: %q", a)
	}
}

func TestPortalResult(t *testing.T) {
	ok := map[string]dbus.Variant{"uri": dbus.MakeVariant("file:///tmp/Screenshot%20one.png")}
	tests := []struct {
		name    string
		body    []interface{}
		want    string
		wantErr string
	}{
		{name: "success", body: []interface{}{uint32(0), ok}, want: "/tmp/Screenshot one.png"},
		{name: "cancelled", body: []interface{}{uint32(1), ok}, wantErr: "denied"},
		{name: "short body", body: []interface{}{uint32(0)}, wantErr: "malformed"},
		{name: "bad results", body: []interface{}{uint32(0), "x"}, wantErr: "malformed"},
		{name: "no uri", body: []interface{}{uint32(0), map[string]dbus.Variant{}}, wantErr: "missing"},
		{name: "remote uri", body: []interface{}{uint32(0), map[string]dbus.Variant{"uri": dbus.MakeVariant("https://example.com/a.png")}}, wantErr: "unsupported"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := portalResult(tc.body)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("portalResult: %v", err)
			}
			if got != tc.want {
				t.Fatalf("path = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoadPNGRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := loadPNG(path)
	if err != nil {
		t.Fatalf("loadPNG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(2, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("pixel = %v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("screenshot file left behind: %v", err)
	}
}

func boolVariant(t *testing.T, values map[string]dbus.Variant, key string) bool {
	t.Helper()
	variant, ok := values[key]
	if !ok {
		t.Fatalf("missing key %q", key)
	}
	v, ok := variant.Value().(bool)
	if !ok {
		t.Fatalf("key %q value is %T, want bool", key, variant.Value())
	}
	return v
}

func stringVariant(t *testing.T, values map[string]dbus.Variant, key string) string {
	t.Helper()
	variant, ok := values[key]
	if !ok {
		t.Fatalf("missing key %q", key)
	}
	v, ok := variant.Value().(string)
	if !ok {
		t.Fatalf("key %q value is %T, want string", key, variant.Value())
	}
	return v
}
