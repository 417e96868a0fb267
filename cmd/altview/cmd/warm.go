package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/slogutil"
)

func init() {
	warmCmd := &cobra.Command{
		Use:   "warm <dir>...",
		Short: "Preload the bitmaps of one or more folders",
		Long: `Walk the folders, queue the first --visible images as visible, the next
--near images at normal priority and the rest at low priority, then wait
for the preload pipeline to drain and print cache statistics.

SIGHUP reloads the configuration file while warming.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWarm,
	}

	warmCmd.Flags().Int("visible", 20, "Images treated as on screen")
	warmCmd.Flags().Int("near", 40, "Images after the visible ones queued at normal priority")
	warmCmd.Flags().Bool("full", false, "Preload full images instead of thumbnails")
	warmCmd.Flags().Duration("timeout", 10*time.Minute, "Give up waiting for the pipeline after this long")

	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	ctx := slogutil.With(cmd.Context(), "run_id", uuid.NewString())

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancelShutdown()
	defer a.close(shutdownCtx)

	visible, _ := cmd.Flags().GetInt("visible")
	near, _ := cmd.Flags().GetInt("near")
	full, _ := cmd.Flags().GetBool("full")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ids, err := collectImages(ctx, a.fs, a.decoder.Accepts, args)
	if err != nil {
		return err
	}

	kind := bitmap.ThumbnailKind(a.cfg.GetThumbnailSize())
	if full {
		kind = bitmap.KindFull
	}

	a.logger.InfoContext(ctx, "Warming bitmap cache",
		"folders", len(args),
		"images", len(ids),
		"kind", kind.String(),
		"decoder", a.decoder.Name())

	subID, changes := a.cache.Subscribe()
	defer a.cache.Unsubscribe(subID)

	var cachedEvents, evictedEvents int
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for change := range changes {
			if change.Cached {
				cachedEvents++
			} else {
				evictedEvents++
			}
		}
	}()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for range reload {
			if err := a.configManager.ReloadConfig(); err != nil {
				a.logger.ErrorContext(ctx, "Failed to reload config", "error", err)
			}
		}
	}()

	if err := a.pressure.Start(ctx); err != nil {
		return fmt.Errorf("failed to start memory pressure monitor: %w", err)
	}

	if err := a.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start preload pipeline: %w", err)
	}

	start := time.Now()
	queueImages(a, kind, ids, visible, near)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.pipeline.WaitIdle(waitCtx); err != nil {
		a.logger.WarnContext(ctx, "Stopped waiting for preload pipeline", "error", err)
	}

	if err := a.pipeline.Stop(shutdownCtx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to stop preload pipeline", "error", err)
	}

	a.cache.Unsubscribe(subID)
	<-eventsDone

	ps := a.pipeline.Stats()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Images\t%d\n", len(ids))
	fmt.Fprintf(w, "Loaded\t%d\n", ps.Loaded)
	fmt.Fprintf(w, "Failed\t%d\n", ps.Failed)
	fmt.Fprintf(w, "Discarded\t%d\n", ps.Discarded)
	fmt.Fprintf(w, "Left in queue\t%d\n", ps.Pending)
	fmt.Fprintf(w, "Cached events\t%d\n", cachedEvents)
	fmt.Fprintf(w, "Evicted events\t%d\n", evictedEvents)
	printCacheStats(w, a.cache.Stats())
	fmt.Fprintf(w, "Elapsed\t%s\n", time.Since(start).Round(time.Millisecond))
	return w.Flush()
}

// queueImages submits ids in display order: the visible window first, then
// the near window at normal priority and the remainder at low priority.
func queueImages(a *app, kind bitmap.Kind, ids []bitmap.Identity, visible, near int) {
	visible = min(max(visible, 0), len(ids))
	near = min(max(near, 0), len(ids)-visible)

	for _, id := range ids[visible+near:] {
		a.pipeline.Enqueue(bitmap.Key{ID: id, Kind: kind}, bitmap.PriorityLow)
	}
	for _, id := range ids[visible : visible+near] {
		a.pipeline.Enqueue(bitmap.Key{ID: id, Kind: kind}, bitmap.PriorityNormal)
	}
	a.pipeline.LoadVisible(kind, ids[:visible]...)
}

// collectImages walks every root in parallel and returns the accepted files
// sorted by path, without duplicates.
func collectImages(ctx context.Context, fsys afero.Fs, accepts func(string) bool, roots []string) ([]bitmap.Identity, error) {
	p := pool.NewWithResults[[]bitmap.Identity]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(4)

	for _, root := range roots {
		p.Go(func(ctx context.Context) ([]bitmap.Identity, error) {
			return walkImages(ctx, fsys, accepts, root)
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var ids []bitmap.Identity
	seen := make(map[bitmap.Identity]bool)
	for _, batch := range results {
		for _, id := range batch {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)

	return ids, nil
}

func walkImages(ctx context.Context, fsys afero.Fs, accepts func(string) bool, root string) ([]bitmap.Identity, error) {
	var ids []bitmap.Identity

	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !accepts(path) {
			return nil
		}

		id, err := bitmap.NewIdentity(path)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return ids, nil
}
