package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/asheshgoplani/piow/internal/config"
)

// handleExampleConfig prints the built-in configuration, or installs it at
// the user config path with --write.
func handleExampleConfig(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("example-config", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	write := fs.Bool("write", false, "install the configuration instead of printing it")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("example-config: %w", err)
	}

	if !*write {
		_, err := stdout.Write(config.DefaultTOML())
		return err
	}

	path, err := config.UserPath()
	if err != nil {
		return err
	}
	if err := config.WriteDefault(path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, not overwriting", path)
		}
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}
