package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var section string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		// Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		set, ok := sections[section]
		if !ok {
			continue
		}
		if err := set(cfg, key, value); err != nil {
			name := section
			if name == "" {
				name = "root"
			}
			return nil, fmt.Errorf("line %d in [%s]: %w", lineNo, name, err)
		}
	}

	return cfg, scanner.Err()
}

var sections = map[string]func(cfg *Config, key, value string) error{
	"":        setRootField,
	"capture": setCaptureField,
	"notify":  setNotifyField,
	"log":     setLogField,
	"serve":   setServeField,
}

func setRootField(cfg *Config, key, value string) error {
	switch key {
	case "save_dir":
		cfg.SaveDir = value
	case "format":
		v := strings.ToLower(value)
		if !oneOf(v, Formats) {
			return fmt.Errorf("unknown format %q", value)
		}
		cfg.Format = v
	}
	return nil
}

func setCaptureField(cfg *Config, key, value string) error {
	switch key {
	case "transport":
		v := strings.ToLower(value)
		if !oneOf(v, Transports) {
			return fmt.Errorf("unknown transport %q", value)
		}
		cfg.Capture.Transport = v
	case "rgb":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		cfg.Capture.RGB = b
	}
	return nil
}

func setNotifyField(cfg *Config, key, value string) error {
	b, err := parseBool(key, value)
	if err != nil {
		return err
	}
	switch key {
	case "capture":
		cfg.Notify.Capture = b
	case "save":
		cfg.Notify.Save = b
	case "copy":
		cfg.Notify.Copy = b
	}
	return nil
}

func setLogField(cfg *Config, key, value string) error {
	switch key {
	case "level":
		cfg.Log.Level = strings.ToLower(value)
	case "pretty":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		cfg.Log.Pretty = b
	}
	return nil
}

func setServeField(cfg *Config, key, value string) error {
	if key == "addr" {
		cfg.Serve.Addr = value
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	return b, nil
}
