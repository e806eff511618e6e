package main

import (
	"fmt"
	"io"
	"os"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitStorageError     = 5
	ExitValidationFailed = 7
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to a subcommand. Without one, or when the first argument
// is a flag, it fetches.
func run(args []string) int {
	if len(args) == 0 {
		return runFetch(args)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "verify":
		return runVerify(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		if len(command) > 0 && command[0] == '-' {
			return runFetch(args)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(stderr, `Usage: tlcfetch [command] [options]

Commands:
  fetch     Download NYC TLC trip data files and optionally upload them (default)
  verify    Check that every selected file exists locally and, optionally, in the bucket

Run 'tlcfetch <command> -h' for command-specific help.`)
}
