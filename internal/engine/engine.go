// Package engine fans a sync run out across many source/destination
// pairs. Each pair is an independent diff-copy invocation with its own
// destination handle; no two pairs share a destination.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bamsammich/diffcopy"
	"github.com/bamsammich/diffcopy/internal/stats"
)

// Config describes a sync run.
type Config struct {
	Sources   []string
	Dst       string
	Stdin     io.Reader // source stream for "-"; defaults to os.Stdin
	Recursive bool
	Workers   int
	BWLimit   int64 // bytes per second across all workers; 0 means unlimited
	Verify    bool
	DryRun    bool
	Stats     *stats.Collector
}

// Result is the outcome of a sync run.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

// Run executes a sync run, blocking until complete.
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	pairs, dirs, err := collectPairs(cfg)
	if err != nil {
		return Result{Stats: collector.Snapshot(), Err: err}
	}

	if cfg.DryRun {
		for _, p := range pairs {
			slog.Info("would sync", "src", p.Src, "dst", p.Dst)
		}
		return Result{Stats: collector.Snapshot()}
	}

	// Directories first: workers may touch files inside any of them.
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{
				Stats: collector.Snapshot(),
				Err:   fmt.Errorf("create directory %s: %w", dir, err),
			}
		}
		collector.AddDirsCreated(1)
	}

	if len(pairs) == 0 {
		return Result{Stats: collector.Snapshot()}
	}

	var limiter *rate.Limiter
	if cfg.BWLimit > 0 {
		limiter = NewBWLimiter(cfg.BWLimit)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	tasks := make(chan Pair)
	errs := make(chan error, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := syncPair(ctx, cfg, pair, limiter, collector); err != nil {
					errs <- err
				}
			}
		}()
	}

feed:
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- pair:
		}
	}
	close(tasks)
	wg.Wait()
	close(errs)

	var runErr error
	var errCount int
	for err := range errs {
		errCount++
		if runErr == nil {
			runErr = err
		}
	}
	if errCount > 1 {
		runErr = fmt.Errorf("%w (and %d more errors)", runErr, errCount-1)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	return Result{Stats: collector.Snapshot(), Err: runErr}
}

func syncPair(
	ctx context.Context,
	cfg Config,
	pair Pair,
	limiter *rate.Limiter,
	collector *stats.Collector,
) error {
	var src io.Reader
	if pair.Src == StdinSource {
		src = cfg.Stdin
		if src == nil {
			src = os.Stdin
		}
	} else {
		f, err := os.Open(pair.Src)
		if err != nil {
			collector.AddFilesFailed(1)
			return fmt.Errorf("open %s: %w", pair.Src, err)
		}
		defer f.Close()
		src = f
	}

	if limiter != nil {
		src = newRateLimitedReader(ctx, src, limiter)
	}

	res, err := diffcopy.Sync(src, pair.Dst)
	if err != nil {
		collector.AddFilesFailed(1)
		return fmt.Errorf("sync %s: %w", pair.Dst, err)
	}

	collector.AddBytesTotal(res.Total)
	collector.AddBytesWritten(res.Written)
	if res.Written == 0 {
		collector.AddFilesUnchanged(1)
	} else {
		collector.AddFilesSynced(1)
	}
	slog.Debug("synced",
		"src", pair.Src,
		"dst", pair.Dst,
		"bytes", res.Total,
		"written", res.Written,
	)

	if cfg.Verify && pair.Src != StdinSource {
		if err := verifyPair(pair.Src, pair.Dst); err != nil {
			collector.AddFilesVerifyFailed(1)
			return err
		}
		collector.AddFilesVerified(1)
	}
	return nil
}
