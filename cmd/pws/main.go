package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess       = 0
	ExitConfigError   = 1
	ExitDatabaseError = 2
	ExitDockerError   = 3
	ExitDeployError   = 4
)

// CommandError carries the exit code a failed command maps to.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) error {
	return &CommandError{Op: op, Err: err, ExitCode: ExitConfigError}
}

// =============================================================================
// Entry Point
// =============================================================================

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"deploy":  {"build and run a project from a source tree", runDeploy},
	"project": {"create or list projects", runProject},
	"env":     {"show or change a project's environment", runEnv},
	"version": {"print version and exit", runVersion},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return ExitConfigError
		}
		return ExitSuccess
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		printUsage(stderr)
		return ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.run(ctx, args[1:], stdout)
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, pflag.ErrHelp) {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "pws %s: %v\n", args[0], err)
	var cErr *CommandError
	if errors.As(err, &cErr) {
		return cErr.ExitCode
	}
	return ExitConfigError
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: pws <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range []string{"deploy", "project", "env", "version"} {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

func runVersion(_ context.Context, _ []string, stdout io.Writer) error {
	fmt.Fprintf(stdout, "pws %s (built %s)\n", Version, BuildTime)
	return nil
}
