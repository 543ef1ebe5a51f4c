package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asheshgoplani/piow/internal/config"
)

const Version = "0.4.0"

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "piow: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches to a subcommand. Without one, the daemon runs.
func run(args []string, stdout io.Writer) error {
	settings, err := config.ParseEnv()
	if err != nil {
		return err
	}

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "run":
			return handleRun(settings, args[1:], stdout)
		case "check":
			return handleCheck(settings, args[1:], stdout)
		case "example-config":
			return handleExampleConfig(args[1:], stdout)
		case "version":
			printVersion(stdout)
			return nil
		case "help":
			printHelp(stdout)
			return nil
		default:
			return fmt.Errorf("unknown command %q (see 'piow help')", args[0])
		}
	}
	return handleRun(settings, args, stdout)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "piow v%s\n", Version)
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `piow v%s - name sway workspaces after the applications they hold

Usage:
  piow [run] [options]          Rename workspaces on every focus change
  piow check [--apply]          Show the names piow would give, optionally apply them
  piow example-config [--write] Print (or install) the built-in configuration
  piow version                  Print the version
  piow help                     Show this help

Options:
  -c, --config <file>     Icon configuration (default: first of %s)
      --socket <path>     IPC socket (default: $SWAYSOCK, then $I3SOCK)
      --log-level <lvl>   debug, info, warn or error (default: warn)
      --log-format <fmt>  text or json (default: text)
      --log-file <file>   Write logs to a rotating file
      --syslog            Write logs to the system logger
      --once              Rename all workspaces once and exit
      --watch             Reload the configuration when it changes (default: true)
  -h, --help              Show this help
  -v, --version           Print the version

Environment:
  PIOW_CONFIG, PIOW_LOG_LEVEL, PIOW_LOG_FORMAT, PIOW_LOG_FILE, PIOW_SYSLOG, PIOW_WATCH
  Flags take precedence over the environment.
`, Version, strings.Join(config.SearchPaths(), ", "))
}
