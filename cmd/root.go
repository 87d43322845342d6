// Package cmd wires up the CLI flags and starts the file server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"telfs/config"
	"telfs/internal/core"
	"telfs/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X telfs/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// usageOut receives --help and --version output.
var usageOut io.Writer = os.Stderr //nolint:gochecknoglobals

// Execute parses args and runs the server until ctx is cancelled.
// Settings come from defaults, then TELFS_* environment variables,
// then flags.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("telfs", flag.ContinueOnError)
	fs.SetOutput(usageOut)

	// ── listener ─────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP port to listen on")
	fs.StringVarP(&cfg.Host, "bind", "b", cfg.Host, "Address to bind (default: all interfaces)")

	// ── sandbox ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.Root, "root", "r", cfg.Root, "Directory served to clients")
	var noCreate bool
	fs.BoolVar(&noCreate, "no-create-root", !cfg.CreateRoot, "Fail if the root directory does not exist")

	// ── workers and limits ───────────────────────────────────────
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Filesystem worker goroutines")
	fs.IntVar(&cfg.QueueDepth, "queue", cfg.QueueDepth, "Pending filesystem commands before clients are told to retry")
	fs.IntVar(&cfg.MaxLineLength, "max-line", cfg.MaxLineLength, "Longest accepted command line in bytes")
	fs.Float64Var(&cfg.CommandRate, "rate", cfg.CommandRate, "Commands per second per client (0 disables)")
	fs.IntVar(&cfg.CommandBurst, "burst", cfg.CommandBurst, "Command burst allowed above --rate")

	idleSec := int(cfg.IdleTimeout / time.Second)
	fs.IntVar(&idleSec, "idle-timeout", idleSec, "Close clients idle for this many seconds (0 = never)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(usageOut, "telfs %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	cfg.CreateRoot = !noCreate
	if fs.Changed("idle-timeout") {
		cfg.IdleTimeout = time.Duration(idleSec) * time.Second
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Fprintf(usageOut, "configuration ok: serving %s on %s\n", cfg.Root, cfg.Address())
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(usageOut, `telfs – sandboxed file server over telnet v%s

Serves one directory to any number of line-oriented TCP clients.
Clients issue ls, cd, cat, touch, mkdir, rm, copy and nick; every
path stays inside the root.

Usage:
  telfs [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(usageOut, `
Environment:
  TELFS_PORT, TELFS_HOST, TELFS_ROOT, TELFS_NO_CREATE_ROOT, TELFS_WORKERS,
  TELFS_QUEUE, TELFS_MAX_LINE, TELFS_RATE, TELFS_BURST, TELFS_IDLE_TIMEOUT,
  TELFS_VERBOSE (flags take precedence)

Examples:
  telfs                                      Serve ./server on port 5678
  telfs -p 2323 -r /srv/share -v             Custom port and root
  telfs --rate 0 --idle-timeout 600          No flood control, 10 min idle
  telnet localhost 5678                      Connect a client
`)
}
