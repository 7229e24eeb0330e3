package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/xgrab/internal/capture"
	"github.com/example/xgrab/internal/frame"
)

type fakeCapturer struct {
	monitors []capture.MonitorInfo
	windows  []capture.WindowInfo
	listErr  error
	calls    []string

	// listCalls counts ListMonitors, which needs a display round-trip.
	listCalls int
}

func (f *fakeCapturer) ListMonitors() ([]capture.MonitorInfo, error) {
	f.listCalls++
	return f.monitors, f.listErr
}

func (f *fakeCapturer) ListWindows() ([]capture.WindowInfo, error) {
	return f.windows, f.listErr
}

func (f *fakeCapturer) CaptureMonitor(m capture.MonitorInfo) (*image.RGBA, error) {
	f.calls = append(f.calls, "monitor")
	return image.NewRGBA(image.Rect(0, 0, m.Rect.Dx(), m.Rect.Dy())), nil
}

func (f *fakeCapturer) CaptureRegion(m capture.MonitorInfo, x, y, w, h int) (*image.RGBA, error) {
	f.calls = append(f.calls, "region")
	if w <= 0 || h <= 0 {
		return nil, &capture.Error{Op: "region", Kind: capture.KindInvalidRegion, Err: errors.New("empty")}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (f *fakeCapturer) CaptureRegionRGB(m capture.MonitorInfo, x, y, w, h int) (*frame.RGB, error) {
	f.calls = append(f.calls, "region rgb")
	return frame.NewRGB(image.Rect(0, 0, w, h)), nil
}

func (f *fakeCapturer) CaptureWindow(w capture.WindowInfo) (*image.RGBA, error) {
	f.calls = append(f.calls, "window")
	if w.ID == 0x200 {
		return nil, &capture.Error{Op: "window", Kind: capture.KindRequest, Err: errors.New("BadMatch")}
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 6)), nil
}

func (f *fakeCapturer) CaptureWindowRGB(w capture.WindowInfo) (*frame.RGB, error) {
	f.calls = append(f.calls, "window rgb")
	return frame.NewRGB(image.Rect(0, 0, 8, 6)), nil
}

func newFake() *fakeCapturer {
	return &fakeCapturer{
		monitors: []capture.MonitorInfo{
			{Index: 0, Name: "DP-1", Output: 10, Rect: image.Rect(0, 0, 64, 32), Primary: true},
		},
		windows: []capture.WindowInfo{
			{Index: 0, ID: 0x100, Title: "Terminal"},
			{Index: 1, ID: 0x200, Title: "Unmapped"},
		},
	}
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodePNG(t *testing.T, rec *httptest.ResponseRecorder) image.Image {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func TestHealth(t *testing.T) {
	rec := get(t, NewServer(newFake(), "1.2.3"), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Fatalf("body = %v", body)
	}
}

func TestListEndpoints(t *testing.T) {
	s := NewServer(newFake(), "dev")
	rec := get(t, s, "/api/monitors")
	var mons []capture.MonitorInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &mons); err != nil || len(mons) != 1 || mons[0].Name != "DP-1" {
		t.Fatalf("monitors = %v, %v", mons, err)
	}
	rec = get(t, s, "/api/windows")
	var wins []capture.WindowInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &wins); err != nil || len(wins) != 2 {
		t.Fatalf("windows = %v, %v", wins, err)
	}

	broken := newFake()
	broken.listErr = &capture.Error{Op: "list monitors", Kind: capture.KindConnection, Err: errors.New("no display")}
	if rec := get(t, NewServer(broken, "dev"), "/api/monitors"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestMonitorCapture(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		status   int
		size     image.Point
		wantCall string
	}{
		{name: "whole monitor", url: "/api/monitors/0/capture", status: 200, size: image.Pt(64, 32), wantCall: "monitor"},
		{name: "region", url: "/api/monitors/0/capture?x=4&y=2&width=10&height=5", status: 200, size: image.Pt(10, 5), wantCall: "region"},
		{name: "region rgb", url: "/api/monitors/0/capture?width=7&height=3&rgb=true", status: 200, size: image.Pt(7, 3), wantCall: "region rgb"},
		{name: "whole rgb", url: "/api/monitors/0/capture?rgb=1", status: 200, size: image.Pt(64, 32), wantCall: "region rgb"},
		{name: "zero width", url: "/api/monitors/0/capture?width=0&height=5", status: 400},
		{name: "negative height", url: "/api/monitors/0/capture?width=4&height=-1", status: 400},
		{name: "missing height", url: "/api/monitors/0/capture?width=5", status: 400},
		{name: "bad number", url: "/api/monitors/0/capture?x=a&width=1&height=1", status: 400},
		{name: "bad rgb", url: "/api/monitors/0/capture?rgb=maybe", status: 400},
		{name: "bad format", url: "/api/monitors/0/capture?format=gif", status: 400},
		{name: "unknown monitor", url: "/api/monitors/3/capture", status: 404},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake()
			rec := get(t, NewServer(fake, "dev"), tc.url)
			if tc.status == 400 && fake.listCalls != 0 {
				t.Fatalf("rejected request still listed monitors")
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.wantCall != "" && (len(fake.calls) != 1 || fake.calls[0] != tc.wantCall) {
				t.Fatalf("calls = %v, want [%s]", fake.calls, tc.wantCall)
			}
			if tc.wantCall == "" && len(fake.calls) != 0 {
				t.Fatalf("unexpected capture calls %v", fake.calls)
			}
			if tc.status == 200 {
				if got := decodePNG(t, rec).Bounds().Size(); got != tc.size {
					t.Fatalf("size = %v, want %v", got, tc.size)
				}
			}
		})
	}
}

func TestWindowCapture(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		status int
	}{
		{name: "hex id", url: "/api/windows/0x100/capture", status: 200},
		{name: "decimal id", url: "/api/windows/256/capture?rgb=true", status: 200},
		{name: "unknown", url: "/api/windows/0x999/capture", status: 404},
		{name: "not an id", url: "/api/windows/zz/capture", status: 400},
		{name: "capture failure", url: "/api/windows/0x200/capture", status: 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, NewServer(newFake(), "dev"), tc.url)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == 200 {
				if got := decodePNG(t, rec).Bounds().Size(); got != image.Pt(8, 6) {
					t.Fatalf("size = %v", got)
				}
			}
		})
	}
}

func TestBMPFormat(t *testing.T) {
	rec := get(t, NewServer(newFake(), "dev"), "/api/monitors/0/capture?format=bmp")
	if rec.Code != 200 || rec.Header().Get("Content-Type") != "image/bmp" {
		t.Fatalf("status %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("BM")) {
		t.Fatalf("body is not a BMP")
	}
}
