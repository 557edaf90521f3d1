// Command reportfetch downloads generated reports from the report service.
//
// Usage:
//
//	reportfetch [--config FILE] fetch --request-id ID [--type T] [--part N] [--file-name NAME]
//	reportfetch [--config FILE] batch FILE
//	reportfetch verify [--bucket URL] PATH...
//	reportfetch [--config FILE] serve [--addr ADDR]
//
// Exit codes:
//   - 0: success
//   - 1: a download or verification failed
//   - 2: bad flags or configuration
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

var version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitFailure)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "reportfetch",
		Usage:     "Download generated reports without holding more than one copy in memory",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"REPORTFETCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			fetchCommand(),
			batchCommand(),
			verifyCommand(),
			serveCommand(),
		},
	}
}

// exitErrHandler prints err and exits with its code. Errors that carry no
// code are treated as failures.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	if exitCoder, ok := errors.AsType[cli.ExitCoder](err); ok {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(c.App.ErrWriter, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
	os.Exit(exitFailure)
}
