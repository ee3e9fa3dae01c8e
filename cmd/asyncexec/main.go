// Command asyncexec drives the orchestrator against a real worker pool.
//
//	asyncexec [flags] demo
//	asyncexec [flags] load -n 100 -fail-rate 0.2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/azargarov/asyncexec"
	"github.com/azargarov/asyncexec/config"
	"github.com/azargarov/asyncexec/metrics"
	"github.com/azargarov/asyncexec/workerpool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app holds the wired components shared by the subcommands.
type app struct {
	pool  *workerpool.Pool
	orch  *asyncexec.Orchestrator
	retry *asyncexec.RetryExecutor
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("asyncexec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fromFlags := config.Default()
	fromFlags.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err == nil {
		cfg.ApplyFlags(fs, fromFlags)
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *metricsAddr != "" {
		srv, err := serveMetrics(ctx, *metricsAddr, reg)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer shutdownMetrics(srv)
	}

	a := newApp(ctx, cfg, m)
	defer func() {
		if err := a.pool.Shutdown(context.Background()); err != nil {
			lg.FromContext(ctx).Error("pool shutdown", lg.Any("error", err))
		}
	}()

	cmd, cmdArgs := "demo", []string(nil)
	if fs.NArg() > 0 {
		cmd, cmdArgs = fs.Arg(0), fs.Args()[1:]
	}
	switch cmd {
	case "demo":
		err = a.demo(ctx, stdout)
	case "load":
		err = a.load(ctx, cmdArgs, stdout, stderr)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg config.Config, m *metrics.Prometheus) *app {
	logger := lg.FromContext(ctx)

	opts := cfg.PoolOptions()
	opts.Metrics = m
	opts.OnJobError = func(err error) { logger.Warn("job error", lg.Any("error", err)) }
	opts.OnInternalError = func(err error) { logger.Error("pool error", lg.Any("error", err)) }
	pool := workerpool.New(opts)

	retry := asyncexec.NewRetryExecutor(
		asyncexec.WithRetryPolicy(cfg.RetryPolicy()),
		asyncexec.WithRetryMetrics(m),
		asyncexec.WithAttemptListener(func(ctx context.Context, st asyncexec.RetryState, err error) {
			lg.FromContext(ctx).Info("attempt failed",
				lg.String("retry_id", st.ID.String()),
				lg.Int("attempt", st.Attempt),
				lg.String("phase", st.Phase.String()),
				lg.Any("error", err),
			)
		}),
	)
	return &app{
		pool:  pool,
		orch:  asyncexec.New(pool, asyncexec.WithMetrics(m)),
		retry: retry,
	}
}

var errUnavailable = errors.New("service unavailable")

// demo merges two plain computations with a retried one that always fails
// and falls back to its recovery.
func (a *app) demo(ctx context.Context, out io.Writer) error {
	word := func(s string) asyncexec.Computation[string] {
		return func(context.Context) (string, error) { return s, nil }
	}
	flaky := func(context.Context) (string, error) { return "", errUnavailable }

	got, err := asyncexec.Execute3(ctx, a.orch,
		word("Hello"),
		asyncexec.Retrying(a.retry, flaky, word("Recovered")),
		word("World"),
		func(x, y, z string) (string, error) { return x + " " + y + " " + z, nil },
	)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, got)
	return nil
}
