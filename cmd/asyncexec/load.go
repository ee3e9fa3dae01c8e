package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/azargarov/asyncexec"
	"github.com/azargarov/asyncexec/workerpool"
)

type loadStats struct {
	ok, rejected, failed atomic.Int64
}

// load fires n concurrent three-way orchestrations. The middle computation
// is retried and fails with probability failRate on every attempt.
func (a *app) load(ctx context.Context, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(errOut)
	n := fs.Int("n", 100, "number of orchestrations")
	failRate := fs.Float64("fail-rate", 0.1, "probability that an attempt fails")
	work := fs.Duration("work", time.Millisecond, "simulated work per computation")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 0 {
		return fmt.Errorf("n must not be negative, got %d", *n)
	}
	if *failRate < 0 || *failRate > 1 {
		return fmt.Errorf("fail-rate must be within [0,1], got %v", *failRate)
	}

	src := rand.New(rand.NewPCG(*seed, *seed))
	draws := make([]float64, 0, *n*a.retry.Policy().Attempts)
	for range cap(draws) {
		draws = append(draws, src.Float64())
	}
	var next atomic.Int64
	roll := func() bool {
		i := int(next.Add(1)-1) % len(draws)
		return draws[i] < *failRate
	}

	step := func(v int) asyncexec.Computation[int] {
		return func(ctx context.Context) (int, error) {
			select {
			case <-time.After(*work):
				return v, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}
	flaky := func(ctx context.Context) (int, error) {
		if roll() {
			return 0, errors.New("simulated failure")
		}
		return step(2)(ctx)
	}
	sum := func(x, y, z int) (int, error) { return x + y + z, nil }

	var stats loadStats
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for range *n {
		g.Go(func() error {
			_, err := asyncexec.Execute3(gctx, a.orch, step(1), asyncexec.Retrying(a.retry, flaky, nil), step(3), sum)
			switch {
			case err == nil:
				stats.ok.Add(1)
			case errors.Is(err, workerpool.ErrQueueFull):
				stats.rejected.Add(1)
			case errors.Is(err, context.Canceled):
				return err
			default:
				stats.failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "ok=%d rejected=%d failed=%d elapsed=%s\n",
		stats.ok.Load(), stats.rejected.Load(), stats.failed.Load(), time.Since(start).Round(time.Millisecond))
	return nil
}
