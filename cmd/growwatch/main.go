package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const usage = `usage: growwatch <command> [flags]

commands:
  run       replay sensor logs through the rules and report the alerts (default)
  serve     accept live readings over HTTP
  history   list alerts recorded by earlier runs
  init      write a starter configuration file

Run "growwatch <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runReplay(args, stdout, stderr)
	case "serve":
		err = runServe(args, stdout, stderr)
	case "history":
		err = runHistory(args, stdout, stderr)
	case "init":
		err = runInit(args, stdout, stderr)
	case "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "growwatch: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "growwatch: %v\n", err)
		return 1
	}
	return 0
}
