package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/example/xgrab/internal/capture"
)

type monitorRow struct {
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	Output  uint32 `json:"output" yaml:"output"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Primary bool   `json:"primary" yaml:"primary"`
}

type windowRow struct {
	Index      int    `json:"index" yaml:"index"`
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Class      string `json:"class,omitempty" yaml:"class,omitempty"`
	Instance   string `json:"instance,omitempty" yaml:"instance,omitempty"`
	PID        uint32 `json:"pid,omitempty" yaml:"pid,omitempty"`
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty"`
	X          int    `json:"x" yaml:"x"`
	Y          int    `json:"y" yaml:"y"`
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Monitor    int    `json:"monitor" yaml:"monitor"`
	Active     bool   `json:"active" yaml:"active"`
}

func monitorRows(monitors []capture.MonitorInfo) []monitorRow {
	rows := make([]monitorRow, 0, len(monitors))
	for _, m := range monitors {
		rows = append(rows, monitorRow{
			Index: m.Index, Name: m.Name, Output: m.Output,
			X: m.Rect.Min.X, Y: m.Rect.Min.Y, Width: m.Rect.Dx(), Height: m.Rect.Dy(),
			Primary: m.Primary,
		})
	}
	return rows
}

func windowRows(windows []capture.WindowInfo) []windowRow {
	rows := make([]windowRow, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, windowRow{
			Index: w.Index, ID: fmt.Sprintf("0x%x", w.ID), Title: w.Title,
			Class: w.Class, Instance: w.Instance, PID: w.PID, Executable: w.Executable,
			X: w.Rect.Min.X, Y: w.Rect.Min.Y, Width: w.Rect.Dx(), Height: w.Rect.Dy(),
			Monitor: w.Monitor, Active: w.Active,
		})
	}
	return rows
}

func validListFormat(format string) bool {
	switch format {
	case "table", "json", "yaml":
		return true
	}
	return false
}

// writeStructured handles the json and yaml formats.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}

type monitorsCmd struct {
	format string
	*root
	fs *flag.FlagSet
}

func parseMonitorsCmd(args []string, r *root) (*monitorsCmd, error) {
	fs := flag.NewFlagSet("monitors", flag.ExitOnError)
	cmd := &monitorsCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	fs.StringVar(&cmd.format, "format", "table", "output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 || !validListFormat(cmd.format) {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (c *monitorsCmd) Run() error {
	monitors, err := listMonitorsFn()
	if err != nil {
		return err
	}
	if c.format != "table" {
		return writeStructured(c.out, c.format, monitorRows(monitors))
	}
	if len(monitors) == 0 {
		fmt.Fprintln(c.out, "no monitors available")
		return nil
	}
	fmt.Fprintln(c.out, "available monitors (* marks the primary monitor):")
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, m := range monitorRows(monitors) {
		marker := " "
		if m.Primary {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%dx%d+%d+%d\n", marker, m.Index, m.Name, m.Width, m.Height, m.X, m.Y)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "selectors: primary, #<n>, <n>, name substring")
	return nil
}

func (c *monitorsCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

type windowsCmd struct {
	format string
	*root
	fs *flag.FlagSet
}

func parseWindowsCmd(args []string, r *root) (*windowsCmd, error) {
	fs := flag.NewFlagSet("windows", flag.ExitOnError)
	cmd := &windowsCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	fs.StringVar(&cmd.format, "format", "table", "output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 || !validListFormat(cmd.format) {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (c *windowsCmd) Run() error {
	windows, err := listWindowsFn()
	if err != nil {
		return err
	}
	if c.format != "table" {
		return writeStructured(c.out, c.format, windowRows(windows))
	}
	if len(windows) == 0 {
		fmt.Fprintln(c.out, "no windows available")
		return nil
	}
	fmt.Fprintln(c.out, "available windows (* marks the active window):")
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, w := range windowRows(windows) {
		marker := " "
		if w.Active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%s\t%s\t%dx%d+%d+%d\n", marker, w.Index, w.ID, w.Class, w.Title, w.Width, w.Height, w.X, w.Y)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "selectors: index:<n>, id:<hex>, pid:<pid>, exec:<name>, class:<name>, title:<text>, substring match")
	return nil
}

func (c *windowsCmd) FlagSet() *flag.FlagSet {
	return c.fs
}
