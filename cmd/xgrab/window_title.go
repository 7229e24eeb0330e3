package main

import (
	"fmt"
	"image"
	"strings"
)

// windowTitle names the preview window after what is shown.
func windowTitle(detail string, size image.Point, extras ...string) string {
	parts := []string{"xgrab"}
	if d := strings.TrimSpace(detail); d != "" {
		parts = append(parts, d)
	}
	if size.X > 0 && size.Y > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", size.X, size.Y))
	}
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	if v := strings.TrimSpace(version); v != "" {
		parts = append(parts, "v"+v)
	}
	return strings.Join(parts, " - ")
}
