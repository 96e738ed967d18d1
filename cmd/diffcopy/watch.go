package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bamsammich/diffcopy/internal/engine"
)

const watchDebounce = 200 * time.Millisecond

// runWatch performs an initial sync, then re-runs the sync whenever a
// source changes. Events are debounced so editors that fire several
// writes in quick succession trigger a single re-sync. Returns when ctx
// is cancelled.
func runWatch(ctx context.Context, cfg engine.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, src := range cfg.Sources {
		if err := watchPath(watcher, src, cfg.Recursive); err != nil {
			return err
		}
	}

	// Initial sync before waiting for events.
	if res := engine.Run(ctx, cfg); res.Err != nil {
		slog.Error("sync failed", "error", res.Err)
	}
	slog.Info("watching for changes", "sources", cfg.Sources)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("source changed", "path", ev.Name, "op", ev.Op.String())

			// New directories must be registered in recursive mode.
			if cfg.Recursive && ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watchPath(watcher, ev.Name, true)
				}
			}
			if !pending {
				debounce.Reset(watchDebounce)
				pending = true
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-debounce.C:
			pending = false
			// A re-sync over unchanged files is cheap: it only reads.
			res := engine.Run(ctx, cfg)
			if res.Err != nil {
				slog.Error("sync failed", "error", res.Err)
				continue
			}
			slog.Info("re-synced", "totals", res.Stats.String())
		}
	}
}

// watchPath registers src with the watcher. For a plain file the parent
// directory is watched instead, so editors that replace the file rather
// than rewrite it in place are still seen.
func watchPath(watcher *fsnotify.Watcher, src string, recursive bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("watch %s: %w", src, err)
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(src))
	}
	if !recursive {
		return watcher.Add(src)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
