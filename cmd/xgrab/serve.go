package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/xgrab/internal/api"
)

var listenFn = func(ctx context.Context, s *api.Server, addr string) error {
	return s.ListenAndServe(ctx, addr)
}

type serveCmd struct {
	addr string
	*root
	fs *flag.FlagSet
}

func (c *serveCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseServeCmd(args []string, r *root) (*serveCmd, error) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	c := &serveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.addr, "addr", r.config.Serve.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 || c.addr == "" {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *serveCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := listenFn(ctx, api.NewServer(api.Direct{}, versionString()), c.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
