package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/example/xgrab/internal/imageio"
)

type previewCmd struct {
	file string
	*root
	fs *flag.FlagSet
}

func (p *previewCmd) FlagSet() *flag.FlagSet {
	return p.fs
}

func parsePreviewCmd(args []string, r *root) (*previewCmd, error) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	c := &previewCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.file, "file", "", "png, bmp or tiff file to open")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.file == "" && fs.NArg() == 1 {
		c.file = fs.Arg(0)
	}
	if c.file == "" {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (p *previewCmd) Run() error {
	img, err := imageio.Load(p.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.file, err)
	}
	return previewFn(windowTitle(filepath.Base(p.file), img.Bounds().Size()), img)
}
