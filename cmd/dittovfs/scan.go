package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/gc"
	"github.com/marmos91/dittovfs/pkg/vfs/cache"
	"github.com/marmos91/dittovfs/pkg/vfs/loader"
	"github.com/spf13/cobra"
)

var (
	scanWalk  bool
	scanServe bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Load a directory tree into the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanWalk, "walk", false, "print the cached tree")
	scanCmd.Flags().BoolVar(&scanServe, "serve", false, "keep running and serve metrics until interrupted")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records, err := config.CreateRecordStore(ctx, &cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := records.Close(); err != nil {
			logger.Warn("Failed to close record store: %v", err)
		}
	}()

	m := config.InitializeMetrics(cfg)
	metricsDone := make(chan error, 1)
	if m.Server != nil {
		go func() { metricsDone <- m.Server.Start(ctx) }()
	} else {
		close(metricsDone)
	}

	c, err := config.CreateCache(&cfg.Cache, records, m.CacheMetrics)
	if err != nil {
		return err
	}

	var collector *gc.Collector
	if cfg.GC.Enabled {
		collector, err = gc.NewCollector(records, gc.Config{
			Enabled:      true,
			Interval:     cfg.GC.Interval,
			DiscardRatio: cfg.GC.DiscardRatio,
		})
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()
			_ = collector.Stop(stopCtx)
		}()
	}

	res, err := loader.Load(ctx, c, args[0], loader.WithRateLimit(config.CreateRateLimiter(&cfg.Loader)))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d directories and %d files in %s (%d skipped)\n",
		res.Directories, res.Files, res.Duration, res.Skipped)
	printStats(out, c.Stats())

	if scanWalk {
		if err := printTree(out, res.Root, 0); err != nil {
			return err
		}
	}

	if scanServe {
		if m.Server == nil {
			logger.Warn("Metrics are disabled, --serve only waits for a signal")
		}
		logger.Info("Serving until interrupted. Press Ctrl+C to stop.")
		<-ctx.Done()
	}
	cancel()

	if err := <-metricsDone; err != nil {
		logger.Error("Metrics server error: %v", err)
	}
	return nil
}

func printStats(w io.Writer, s cache.Stats) {
	fmt.Fprintf(w, "session:            %s\n", s.SessionID)
	fmt.Fprintf(w, "segments:           %d\n", s.Segments)
	fmt.Fprintf(w, "cached directories: %d\n", s.CachedDirectories)
	fmt.Fprintf(w, "pending cleanup:    %d\n", s.PendingCleanup)
	fmt.Fprintf(w, "invalidated:        %d\n", s.Invalidated)
	fmt.Fprintf(w, "reparented files:   %d\n", s.ReparentedFiles)
}

func printTree(w io.Writer, h *cache.Handle, depth int) error {
	name, err := h.Name()
	if err != nil {
		return err
	}
	if h.IsDirectory() && depth > 0 {
		name += string(os.PathSeparator)
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), name)

	if !h.IsDirectory() {
		return nil
	}
	children, err := h.Children(false)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printTree(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
