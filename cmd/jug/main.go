// Command jug is the thin CLI front end (§6): option parsing and the
// textual status table live here, outside the core engine, dispatching to
// the scheduler/store/invalidate/barrier packages for every command.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asford/jug/internal/config"
	"github.com/asford/jug/internal/telemetry"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: jug <command> [flags]

commands:
  execute               run the scheduler loop until quiescent
  status                classify every task without executing
  check                 exit 0 if every task is loadable, 1 otherwise
  sleep-until           block until every task is loadable
  invalidate <name>     invalidate tasks matching a name pattern
  cleanup                delete store entries outside the current task set
  count                  report per-name task counts`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	logger := telemetry.InitLogging("jug-cli")
	_ = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracer := telemetry.InitTracer(ctx, "jug-cli")
	defer telemetry.Flush(context.Background(), shutdownTracer)
	shutdownMetrics, metrics := telemetry.InitMetrics(ctx, "jug-cli")
	defer telemetry.Flush(context.Background(), shutdownMetrics)

	cfg := config.FromEnv()

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dir := fs.String("dir", cfg.Dir, "directory backend root (overrides JUG_DIR)")
	storeConn := fs.String("store", cfg.Store, "store connection string (overrides JUG_STORE)")
	daemon := fs.Bool("daemon", false, "run execute in long-lived daemon mode")
	lockSweep := fs.String("lock-sweep", "", "cron schedule for the janitor's periodic lock sweep (daemon mode only)")
	locksOnly := fs.Bool("locks-only", false, "cleanup: delete only lock entries")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if *storeConn != "" {
		cfg.Store = *storeConn
	}

	var err error
	switch cmd {
	case "execute":
		err = cmdExecute(ctx, cfg, *daemon, *lockSweep, metrics)
	case "status":
		err = cmdStatus(cfg)
	case "check":
		var ok bool
		ok, err = cmdCheck(cfg)
		if err == nil && !ok {
			return 1
		}
	case "sleep-until":
		err = cmdSleepUntil(ctx, cfg, func() <-chan struct{} {
			c := make(chan struct{})
			go func() { time.Sleep(cfg.WaitCycleTime); close(c) }()
			return c
		})
	case "invalidate":
		if fs.NArg() != 1 {
			usage()
			return 2
		}
		err = cmdInvalidate(cfg, fs.Arg(0))
	case "cleanup":
		err = cmdCleanup(cfg, *locksOnly)
	case "count":
		err = cmdCount(cfg)
	default:
		usage()
		return 2
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "jug:", err)
		return 1
	}
	return 0
}
