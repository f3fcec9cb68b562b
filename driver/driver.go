// Package driver wires the analyzer command line to the pipeline: argument
// parsing, usage, the stdin feed loop, and orderly shutdown.
package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/oklog/run"
	"github.com/urfave/cli/v3"

	"github.com/itayaharoni2/analyzer/loader"
	"github.com/itayaharoni2/analyzer/pipeline"
	"github.com/itayaharoni2/analyzer/stage"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1 // usage, load, feed, IO and shutdown errors
	ExitInit  = 2 // per-stage initialization failure
)

// maxLineLen bounds input lines, excluding the newline.
const maxLineLen = 1024

var (
	errUsage    = errors.New("usage error")
	errSignaled = errors.New("stopped by signal")
)

// Run executes the analyzer and returns its exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	d := &driver{stdin: stdin, stdout: stdout, stderr: stderr}

	// We map errors to exit codes ourselves.
	cli.OsExiter = func(int) {}

	cmd := &cli.Command{
		Name:      "analyzer",
		Usage:     "run lines of standard input through a pipeline of transformation stages",
		ArgsUsage: "<queue_size> <stage> [<stage> ...]",
		HideHelp:  true,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Aliases:   []string{"c"},
				Usage:     "read the queue size and stage list from a YAML file",
				TakesFile: true,
			},
		},
		// Arguments the flag parser rejects before the action runs (a
		// negative queue size reads as an unknown flag) get the same
		// diagnostic and usage text as the action's own usage errors.
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			fmt.Fprintf(stderr, "analyzer: %v\n", err)
			printUsage(stdout)
			return fmt.Errorf("%w: %v", errUsage, err)
		},
		Action: d.action,
	}

	err := cmd.Run(ctx, args)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrInit):
		return ExitInit
	default:
		return ExitError
	}
}

type driver struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (d *driver) action(ctx context.Context, cmd *cli.Command) error {
	queueSize, stages, err := d.parseArgs(cmd)
	if err != nil {
		fmt.Fprintf(d.stderr, "analyzer: %v\n", err)
		printUsage(d.stdout)
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ld := loader.New(d.stdout, loader.ModeFromEnv())
	defer ld.Close()

	p, err := pipeline.New(ld, queueSize, stages)
	if err != nil {
		fmt.Fprintf(d.stderr, "analyzer: %v\n", err)
		return err
	}

	feedErr := d.runGroup(p)
	if feedErr != nil {
		fmt.Fprintf(d.stderr, "analyzer: %v\n", feedErr)
	}

	// The feed loop has placed the terminator by now; drain the stages in
	// stream order, then release them in reverse.
	shutdownErr := p.Shutdown()
	if shutdownErr != nil {
		fmt.Fprintf(d.stderr, "analyzer: %v\n", shutdownErr)
	}

	fmt.Fprintln(d.stdout, "Pipeline shutdown complete")
	return errors.Join(feedErr, shutdownErr)
}

// runGroup runs the feed actor next to an os-signal trap. A signal cancels
// the stdin reader so the feed loop can stop and place the terminator
// in-band; that path is a normal exit.
func (d *driver) runGroup(p *pipeline.Pipeline) error {
	cancelRead := make(chan error, 1)
	reader := NewCancelableReader(cancelRead, d.stdin)

	var rg run.Group

	signalTrap := make(chan os.Signal, 1)
	signal.Notify(signalTrap, syscall.SIGINT, syscall.SIGTERM)
	rg.Add(
		func() error {
			if sig, ok := <-signalTrap; ok {
				log.Printf("analyzer interrupted by %v signal", sig)
				return fmt.Errorf("%w: %v", errSignaled, sig)
			}
			return nil
		},
		func(error) {
			signal.Stop(signalTrap)
			close(signalTrap)
		},
	)

	var interruptOnce sync.Once
	rg.Add(
		func() error {
			return d.feed(p, reader)
		},
		func(err error) {
			interruptOnce.Do(func() { cancelRead <- err })
		},
	)

	err := rg.Run()
	if errors.Is(err, errSignaled) {
		return nil
	}
	return err
}

// feed reads lines until the terminator, EOF, cancellation, or a read
// error, submitting each to the head stage. Whatever the exit path, the
// terminator is placed exactly once so shutdown can proceed.
func (d *driver) feed(p *pipeline.Pipeline, r io.Reader) error {
	defer func() {
		if err := p.Terminate(); err != nil {
			log.Printf("placing terminator: %v", err)
		}
	}()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxLineLen+1), maxLineLen+1)

	for sc.Scan() {
		line := sc.Text()
		if line == stage.Terminator {
			return nil
		}
		if err := p.Place(line); err != nil {
			return err
		}
	}

	err := sc.Err()
	if err == nil {
		// EOF before the terminator still shuts down cleanly.
		return nil
	}
	var cancelled ErrReadCancelled
	if errors.As(err, &cancelled) {
		return nil
	}
	return fmt.Errorf("%w: reading input: %v", pipeline.ErrFeed, err)
}

func (d *driver) parseArgs(cmd *cli.Command) (int, []string, error) {
	args := cmd.Args().Slice()

	if len(args) == 0 {
		if path := cmd.String("config"); path != "" {
			cfg, err := LoadConfig(path)
			if err != nil {
				return 0, nil, err
			}
			return cfg.QueueSize, cfg.Stages, nil
		}
		return 0, nil, errors.New("missing arguments")
	}
	if len(args) < 2 {
		return 0, nil, errors.New("missing stage names")
	}

	queueSize, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid queue size %q", args[0])
	}
	if queueSize < 1 {
		return 0, nil, fmt.Errorf("queue size must be at least 1, got %d", queueSize)
	}

	return queueSize, args[1:], nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: analyzer <queue_size> <stage> [<stage> ...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs each line of standard input through the named stages in order.")
	fmt.Fprintf(w, "A line of exactly %s shuts the pipeline down.\n", stage.Terminator)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stages:")
	for _, b := range loader.Builtins() {
		fmt.Fprintf(w, "  %-12s%s\n", b.Name, b.Summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  analyzer 10 uppercaser logger")
	fmt.Fprintln(w, "  analyzer 20 uppercaser rotator logger flipper typewriter")
}
