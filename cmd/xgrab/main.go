package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/example/xgrab/internal/capture"
	"github.com/example/xgrab/internal/config"
	"github.com/example/xgrab/internal/logger"
	"github.com/example/xgrab/internal/notify"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs            *flag.FlagSet
	program       string
	notifier      *notify.Notifier
	config        *config.Config
	out           io.Writer
	errOut        io.Writer
	captureAlerts bool
	saveAlerts    bool
	copyAlerts    bool
	transport     string
	logLevel      string
	logPretty     bool
}

func (r *root) Program() string {
	return r.program
}

func (r *root) subcommand(name string) *root {
	program := strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
	return &root{
		program:  program,
		notifier: r.notifier,
		config:   r.config,
		out:      r.out,
		errOut:   r.errOut,
	}
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}

	r := &root{
		fs:      flag.NewFlagSet("xgrab", flag.ExitOnError),
		program: "xgrab",
		config:  cfg,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
	r.fs.BoolVar(&r.captureAlerts, "notify-capture", cfg.Notify.Capture, "show a desktop notification after capturing a screenshot")
	r.fs.BoolVar(&r.saveAlerts, "notify-save", cfg.Notify.Save, "show a desktop notification after saving an image")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", cfg.Notify.Copy, "show a desktop notification after copying to the clipboard")
	// Precedence: CLI > Env > Config > Default. An empty flag falls through.
	r.fs.StringVar(&r.transport, "transport", "", "capture transport: auto, x11 or portal (env XGRAB_TRANSPORT)")
	r.fs.StringVar(&r.logLevel, "log-level", "", "log level: debug, info, warn, error or off")
	r.fs.BoolVar(&r.logPretty, "log-pretty", cfg.Log.Pretty, "human readable log output")
	r.fs.Usage = usageFunc(r)
	return r
}

// configure applies logging, transport and notification settings once flags
// are parsed.
func (r *root) configure(lookupEnv func(string) (string, bool)) error {
	level := r.logLevel
	if level == "" {
		level = r.config.Log.Level
	}
	logger.Init(level, r.logPretty)

	if err := r.config.ApplyEnv(lookupEnv); err != nil {
		return err
	}
	if r.transport != "" {
		r.config.Capture.Transport = r.transport
	}
	mode, err := capture.ParseMode(r.config.Capture.Transport)
	if err != nil {
		return err
	}
	capture.SetMode(mode)
	logger.WithComponent("cli").Debug().Str("transport", string(mode)).Str("level", level).Msg("configured")

	r.notifier = notify.New(notify.LoadPreferences(os.Getenv), config.Notify{Capture: r.captureAlerts, Save: r.saveAlerts, Copy: r.copyAlerts})
	return nil
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	if err := r.configure(os.LookupEnv); err != nil {
		return err
	}

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "snapshot":
		cmd, err = parseSnapshotCmd(subArgs, r.subcommand(cmdName))
	case "monitors":
		cmd, err = parseMonitorsCmd(subArgs, r.subcommand(cmdName))
	case "windows":
		cmd, err = parseWindowsCmd(subArgs, r.subcommand(cmdName))
	case "serve":
		cmd, err = parseServeCmd(subArgs, r.subcommand(cmdName))
	case "preview":
		cmd, err = parsePreviewCmd(subArgs, r.subcommand(cmdName))
	case "config":
		cmd, err = parseConfigCmd(subArgs, r.subcommand(cmdName))
	case "version":
		cmd = &versionCmd{root: r.subcommand(cmdName)}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (r *root) notifyCapture(detail string, img image.Image) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Capture(detail, img)
}

func (r *root) notifySave(path string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Save(path)
}

func (r *root) notifyCopy(detail string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Copy(detail)
}
