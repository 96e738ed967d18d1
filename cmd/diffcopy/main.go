package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bamsammich/diffcopy/internal/config"
	"github.com/bamsammich/diffcopy/internal/engine"
	"github.com/bamsammich/diffcopy/internal/stats"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		recursive   bool
		workers     int
		bwLimitStr  string
		verifyFlag  bool
		dryRun      bool
		verbose     bool
		quiet       bool
		watchFlag   bool
		logFile     string
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "diffcopy [flags] <source>... <destination>",
		Short: "Bring files in sync while writing only what changed",
		Long: `diffcopy makes each destination file byte-for-byte identical to its
source, but reads the destination first and rewrites it only from the
point where the two diverge. Destinations that already match are never
written, which keeps repeated syncs from wearing flash storage, churning
network filesystems, or waking file watchers.

Use "-" as the sole source to sync from stdin.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "diffcopy %s\n", version)
				return nil
			}

			sources := args[:len(args)-1]
			dst := args[len(args)-1]

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, &workers, &verifyFlag, &bwLimitStr)

			var bwLimit int64
			if bwLimitStr != "" {
				bwLimit, err = engine.ParseSize(bwLimitStr)
				if err != nil {
					return fmt.Errorf("invalid --bwlimit: %w", err)
				}
			}

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = newMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			if workers <= 0 {
				workers = min(runtime.NumCPU(), 8)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			engCfg := engine.Config{
				Sources:   sources,
				Dst:       dst,
				Recursive: recursive,
				Workers:   workers,
				BWLimit:   bwLimit,
				Verify:    verifyFlag,
				DryRun:    dryRun,
				Stats:     collector,
			}

			if watchFlag {
				if dryRun {
					return errors.New("--watch and --dry-run are mutually exclusive")
				}
				for _, src := range sources {
					if src == engine.StdinSource {
						return errors.New("--watch cannot read from stdin")
					}
				}
				return runWatch(ctx, engCfg)
			}

			res := engine.Run(ctx, engCfg)
			printSummary(res.Stats, quiet, verbose)
			return res.Err
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVarP(&recursive, "recursive", "r", false, "sync directories recursively")
	flags.IntVar(&workers, "workers", 0, "number of parallel workers (default: CPU count, capped at 8)")
	flags.StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit, e.g. 10M or 1G")
	flags.BoolVar(&verifyFlag, "verify", false, "verify destinations with BLAKE3 after syncing")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "show what would be synced without writing")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress all non-error output")
	flags.BoolVarP(&watchFlag, "watch", "w", false, "keep running and re-sync when sources change")
	flags.StringVar(&logFile, "log", "", "write structured JSON logs to this file")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "diffcopy: %v\n", err)
		return 1
	}
	return 0
}

// applyConfigDefaults fills flags the user did not set on the command
// line from the config file.
func applyConfigDefaults(
	cmd *cobra.Command,
	d config.DefaultsConfig,
	workers *int,
	verify *bool,
	bwLimit *string,
) {
	if !cmd.Flags().Changed("workers") && d.Workers != nil {
		*workers = *d.Workers
	}
	if !cmd.Flags().Changed("verify") && d.Verify != nil {
		*verify = *d.Verify
	}
	if !cmd.Flags().Changed("bwlimit") && d.BWLimit != nil {
		*bwLimit = *d.BWLimit
	}
}

// printSummary writes the end-of-run totals to stderr. Skipped when
// stderr is not a terminal, unless --verbose asked for it anyway.
func printSummary(s stats.Snapshot, quiet, verbose bool) {
	if quiet {
		return
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) && !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "%d synced, %d unchanged, %d failed in %s\n",
		s.FilesSynced, s.FilesUnchanged, s.FilesFailed,
		s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "%s total, %s written, %s left untouched\n",
		stats.FormatBytes(s.BytesTotal),
		stats.FormatBytes(s.BytesWritten),
		stats.FormatBytes(s.BytesSaved()))
}
