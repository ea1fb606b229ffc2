package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
)

// Exit codes
const (
	exitOK      = 0
	exitError   = 1
	exitNoData  = 2 // nowait found nothing pending, or a timeout elapsed
	exitUsage   = 64
	programName = "shmbus"
)

// errNoMessage reports a non-blocking subscribe that delivered nothing
var errNoMessage = errors.New("no message delivered")

// app carries what every subcommand needs
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"publish":   {"write a payload to a segment and notify topics", runPublish},
	"subscribe": {"wait for a topic notification and print the segment", runSubscribe},
	"list":      {"list kernel objects in the namespace", runList},
	"inspect":   {"show the state of a segment and topic", runInspect},
	"provision": {"create the segments and topics named in a manifest", runProvision},
	"teardown":  {"remove the segments and topics named in a manifest", runTeardown},
	"destroy":   {"remove every object matching a pattern", runDestroy},
	"serve":     {"run the HTTP status endpoint", runServe},
	"bench":     {"measure publish to delivery latency", runBench},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := config.LoadOrDefault()

	// Global flags override the environment
	global := flag.NewFlagSet(programName, flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&cfg.Bus.Dir, "dir", cfg.Bus.Dir, "namespace directory")
	global.StringVar(&cfg.Bus.Prefix, "prefix", cfg.Bus.Prefix, "object name prefix")
	global.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level (debug, info, warn, error)")
	global.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "development logging")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if err := cfg.Bus.Validate(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(global)
		return exitUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unknown command %q\n", programName, rest[0])
		usage(global)
		return exitUsage
	}

	logger, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger.Named(rest[0]), stdin: stdin, stdout: stdout, stderr: stderr}
	err = cmd.run(ctx, a, rest[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%s %s: %v\n", programName, rest[0], err)
		return exitUsage
	case errors.Is(err, errNoMessage):
		return exitNoData
	case errors.Is(err, context.Canceled):
		return exitOK
	default:
		logger.Error("Command failed", zap.String("command", rest[0]), zap.Error(err))
		fmt.Fprintf(stderr, "%s %s: %v\n", programName, rest[0], err)
		return exitError
	}
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: %s [flags] <command> [command flags]\n\ncommands:\n", programName)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

// errUsage marks a command line the subcommand cannot act on
var errUsage = errors.New("invalid usage")

func usageErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// newFlagSet creates a subcommand flag set that reports errors instead of exiting
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(programName+" "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parse wraps flag parse failures so run maps them to the usage exit code
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}
