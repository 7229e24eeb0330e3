package config

import (
	"fmt"
	"strings"
)

// Image file formats accepted by the format key.
var Formats = []string{"png", "bmp", "tiff"}

// Capture transports accepted by the [capture] transport key.
var Transports = []string{"auto", "x11", "portal"}

// Notify holds notification settings.
type Notify struct {
	Capture bool
	Save    bool
	Copy    bool
}

// Capture holds the [capture] section.
type Capture struct {
	Transport string
	RGB       bool
}

// Log holds the [log] section.
type Log struct {
	Level  string
	Pretty bool
}

// Serve holds the [serve] section.
type Serve struct {
	Addr string
}

// Config holds the application configuration.
type Config struct {
	SaveDir string
	Format  string
	Capture Capture
	Notify  Notify
	Log     Log
	Serve   Serve
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Format:  "png",
		Capture: Capture{Transport: "auto"},
		Log:     Log{Level: "warn"},
		Serve:   Serve{Addr: "127.0.0.1:8080"},
	}
}

// ApplyEnv lets XGRAB_TRANSPORT override the configured transport.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	v, ok := lookup("XGRAB_TRANSPORT")
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if !oneOf(v, Transports) {
		return fmt.Errorf("XGRAB_TRANSPORT: unknown transport %q", v)
	}
	c.Capture.Transport = v
	return nil
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	if c.Format != "" {
		fmt.Fprintf(&sb, "format = %s\n", c.Format)
	}
	sb.WriteString("\n")

	sb.WriteString("[capture]\n")
	fmt.Fprintf(&sb, "transport = %s\n", c.Capture.Transport)
	fmt.Fprintf(&sb, "rgb = %v\n", c.Capture.RGB)
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "capture = %v\n", c.Notify.Capture)
	fmt.Fprintf(&sb, "save = %v\n", c.Notify.Save)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)
	sb.WriteString("\n")

	sb.WriteString("[log]\n")
	fmt.Fprintf(&sb, "level = %s\n", c.Log.Level)
	fmt.Fprintf(&sb, "pretty = %v\n", c.Log.Pretty)
	sb.WriteString("\n")

	sb.WriteString("[serve]\n")
	fmt.Fprintf(&sb, "addr = %s\n", c.Serve.Addr)

	return sb.String()
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
