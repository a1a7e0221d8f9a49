package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	camelshdf5 "github.com/nomad-camels/camels-hdf5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var watchWorkers int

// watchCmd watches a spool directory and exports every new stream file.
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and export new .jsonl streams as they appear",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchDirectory(ctx, args[0], cfg)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 4, "concurrent exports")
}

// watchDirectory exports stream files dropped into dir until the context
// is cancelled. Each run still owns its output file exclusively; only
// distinct streams are exported concurrently.
func watchDirectory(ctx context.Context, dir string, cfg camelshdf5.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	logger.Info("watching spool directory", zap.String("dir", dir))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(watchWorkers)

	for {
		select {
		case <-ctx.Done():
			_ = group.Wait()
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return group.Wait()
			}
			logger.Warn("watch error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return group.Wait()
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".jsonl") {
				continue
			}
			stream := event.Name
			group.Go(func() error {
				artifacts, err := exportStream(stream, cfg)
				if err != nil {
					// One bad stream must not stop the watcher.
					logger.Error("export failed",
						zap.String("stream", stream), zap.Error(err))
					return nil
				}
				for entry, files := range artifacts {
					logger.Info("exported",
						zap.String("stream", stream),
						zap.String("entry", entry),
						zap.Strings("files", files))
				}
				return nil
			})
		}
	}
}
