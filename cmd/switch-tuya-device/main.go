package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"tuya-switch/config"
	"tuya-switch/internal/application"
	"tuya-switch/internal/domain"
	"tuya-switch/internal/infra"
	"tuya-switch/internal/infra/mqtt"
	"tuya-switch/internal/infra/pushover"
	"tuya-switch/internal/infra/tuya"
	"tuya-switch/internal/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	device     string
	command    string
	file       string
	delay      time.Duration
	delaySet   bool
	configPath string
	verbose    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return domain.ExitOK
	}
	if err != nil {
		return domain.ExitUnknownCommand
	}

	baseDir := executableDir()

	cfg, err := loadConfig(opts.configPath, baseDir)
	if err != nil {
		slog.New(slog.NewTextHandler(stderr, nil)).Error("loading config", "error", err)
		return domain.ExitCode(err)
	}

	logger := setupLogger(cfg.Log, opts.verbose, stderr).With("run_id", uuid.NewString())

	file := cfg.Registry.File
	if opts.file != "" {
		file = opts.file
	}
	reg, err := registry.Load(registry.ResolvePath(file, baseDir))
	if err != nil {
		logger.Error("reading devices", "error", err)
		return domain.ExitCode(err)
	}
	logger.Debug("devices loaded", "path", reg.Path(), "count", len(reg.Records()))

	delay, _ := cfg.Delay()
	if opts.delaySet {
		delay = opts.delay
	}

	timeout, _ := cfg.Timeout()
	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Tuya.Attempts
	tuyaOpts := tuya.Options{Port: cfg.Tuya.Port, Timeout: timeout, Retry: retry}

	opener := application.DeviceOpenerFunc(func(rec domain.Record) (application.Device, error) {
		client, err := tuya.Open(rec, tuyaOpts)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	notifier, closeNotifier := createNotifier(cfg, timeout, logger)
	defer closeNotifier()

	switcher := application.NewSwitcher(reg, opener, notifier, clock.New(), stdout, logger)

	_, err = switcher.Run(ctx, application.Request{
		Selector: opts.device,
		Command:  opts.command,
		Delay:    delay,
	})
	if err != nil {
		logger.Error("switching device", "error", err)
		return domain.ExitCode(err)
	}

	return domain.ExitOK
}

// parseArgs accepts flags before, between and after the two positionals.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("switch-tuya-device", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: switch-tuya-device <dev> <cmd> [-f FILE] [-d DELAY] [-config FILE] [-v]")
		fmt.Fprintln(fs.Output(), "\nTurn on/off tuya power plug devices.\n\n  dev\tdevice name, id, ip or mac\n  cmd\tcommand to issue (on, off or toggle)")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.file, "f", "", "input json file containing devices list (default "+registry.DefaultFile+")")
	fs.StringVar(&opts.file, "file", "", "same as -f")
	delayFlag := func(v string) error {
		d, err := parseDelay(v)
		if err != nil {
			return err
		}
		opts.delay, opts.delaySet = d, true
		return nil
	}
	fs.Func("d", "delay in seconds (or a duration such as 1m30s) before sending the command", delayFlag)
	fs.Func("delay", "same as -d", delayFlag)
	fs.StringVar(&opts.configPath, "config", "", "path to config file (default "+config.DefaultFile+" next to the executable, if present)")
	fs.BoolVar(&opts.verbose, "v", false, "log debug messages")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return opts, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		// everything after "--" is positional
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}

	if len(positional) != 2 {
		err := fmt.Errorf("expected <dev> and <cmd>, got %d arguments", len(positional))
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return opts, err
	}

	opts.device, opts.command = positional[0], positional[1]
	return opts, nil
}

func parseDelay(v string) (time.Duration, error) {
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, fmt.Errorf("invalid delay %q", v)
	}
	if d < 0 {
		return 0, fmt.Errorf("delay must not be negative: %q", v)
	}
	return d, nil
}

func loadConfig(path, baseDir string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOptional(filepath.Join(baseDir, config.DefaultFile))
}

func createNotifier(cfg *config.Config, timeout time.Duration, logger *slog.Logger) (application.Notifier, func()) {
	var notifiers application.Notifiers
	cleanup := func() {}

	if cfg.MQTT.Enabled {
		n, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Timeout:     timeout,
		}, logger)
		if err != nil {
			logger.Warn("mqtt unavailable, state will not be published", "error", err)
		} else {
			notifiers = append(notifiers, n)
			cleanup = n.Close
		}
	}

	if cfg.Pushover.Enabled {
		notifiers = append(notifiers, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey))
	}

	if len(notifiers) == 0 {
		return &application.NoopNotifier{}, cleanup
	}
	return notifiers, cleanup
}

// executableDir is where relative registry and config paths are resolved.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func setupLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
