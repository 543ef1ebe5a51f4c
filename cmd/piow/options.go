package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/logging"
	"github.com/asheshgoplani/piow/internal/sway"
)

var cliLog = logging.ForComponent(logging.CompConfig)

// options are the settings shared by the commands that talk to the window
// manager. Defaults come from the environment.
type options struct {
	configPath string
	socket     string
	logLevel   string
	logFormat  string
	logFile    string
	syslog     bool
	help       bool
	version    bool
}

func newFlagSet(name string, settings config.Settings) (*pflag.FlagSet, *options) {
	o := &options{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&o.configPath, "config", "c", settings.ConfigPath, "icon configuration file")
	fs.StringVar(&o.socket, "socket", "", "window manager IPC socket")
	fs.StringVar(&o.logLevel, "log-level", settings.LogLevel, "minimum log level")
	fs.StringVar(&o.logFormat, "log-format", settings.LogFormat, "log format (text or json)")
	fs.StringVar(&o.logFile, "log-file", settings.LogFile, "rotating log file")
	fs.BoolVar(&o.syslog, "syslog", settings.Syslog, "log to the system logger")
	fs.BoolVarP(&o.help, "help", "h", false, "show help")
	fs.BoolVarP(&o.version, "version", "v", false, "print the version")
	return fs, o
}

// parse parses args and reports whether the command should go on. Help and
// version requests are answered here.
func (o *options) parse(fs *pflag.FlagSet, args []string, stdout io.Writer) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout)
			return false, nil
		}
		fmt.Fprintf(os.Stderr, "piow %s: %v\n", fs.Name(), err)
		return false, errUsage
	}
	if o.help {
		printHelp(stdout)
		return false, nil
	}
	if o.version {
		printVersion(stdout)
		return false, nil
	}
	if rest := fs.Args(); len(rest) > 0 {
		return false, fmt.Errorf("unexpected argument %q", rest[0])
	}
	return true, nil
}

func (o *options) loggingConfig() logging.Config {
	return logging.Config{
		File:   o.logFile,
		Syslog: o.syslog,
		Level:  o.logLevel,
		Format: o.logFormat,
	}
}

func (o *options) socketPath() (string, error) {
	if o.socket != "" {
		return o.socket, nil
	}
	return sway.SocketPath()
}

// loadConfig returns the configuration to start with and the file it came
// from. A missing or broken file falls back to the built-in configuration;
// the path of a broken file is still returned so it can be watched.
func (o *options) loadConfig() (*config.IconConfig, string) {
	path, err := config.Resolve(o.configPath)
	if err != nil {
		cliLog.Warn("config_default", slog.String("reason", err.Error()))
		return config.Default(), ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		cliLog.Error("config_load_failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return config.Default(), path
	}
	cliLog.Info("config_loaded",
		slog.String("path", path),
		slog.Int("icons", len(cfg.Keys())),
	)
	return cfg, path
}
