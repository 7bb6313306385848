package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benmeehan/pin-locator/internal/constants"
	"github.com/benmeehan/pin-locator/internal/utils"
	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/rs/zerolog"
)

const usage = `Usage: pinlog [-config file] [-env file] [-log-level level] <command> [args]

Commands:
  serve                 run the HTTP API, live feed and MQTT publisher
  record                acquire the current position and store it as a pin
  list                  list pins, newest first
  show <id>             show one pin with its links
  note <id> <text>      replace the note of a pin
  delete <id>           delete one pin
  clear -yes            delete all pins
  export [-o file] [-backup]
                        write all pins to a JSON file and optionally upload it
  import <file|url>    merge pins from an exported JSON file or a backup link
`

// errUsage marks command line mistakes; main prints the usage text for them.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pinlog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := fs.String("config", constants.DefaultConfigFile, "path to the YAML configuration file")
	envFile := fs.String("env", ".env", "path to an optional .env file with secrets")
	logLevel := fs.String("log-level", "", "override the configured log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	command, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if err := utils.LoadDotEnv(*envFile); err != nil {
		return err
	}

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(*configFile, fileClient, os.Getenv)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(config.LogLevel, command == "serve", stderr)
	if err != nil {
		return err
	}

	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	return cmd(&cli{
		config:     config,
		fileClient: fileClient,
		logger:     logger,
		stdout:     stdout,
	}, cmdArgs)
}

// newLogger returns JSON logs for the long-running server and human-readable logs for one-shot commands.
func newLogger(level string, structured bool, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if !structured {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
