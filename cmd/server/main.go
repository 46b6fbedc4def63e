package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basicrecords/moodjournal/internal/api"
	"github.com/basicrecords/moodjournal/internal/config"
	"github.com/basicrecords/moodjournal/internal/journal"
	"github.com/basicrecords/moodjournal/internal/logging"
	"github.com/basicrecords/moodjournal/internal/scheduler"
	"github.com/basicrecords/moodjournal/internal/storage"
)

const jobTimeout = 2 * time.Minute

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "moodjournal",
		Short:         "Journal backend with weekly mood insights",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(),
		newAggregateCmd(opts),
		newFilterCmd(),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and maintenance jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()
	logger.Info("storage ready", zap.String("backend", cfg.Storage.Backend))

	svc := journal.NewService(store, journal.Options{
		Logger:    logger.Named("journal"),
		Location:  loc,
		Precision: cfg.Insights.Precision,
	})

	sched := scheduler.New(logger.Named("scheduler"), jobTimeout)
	if err := sched.Add(scheduler.Job{
		Name: "stats-refresh",
		Spec: cfg.Maintenance.StatsRefresh,
		Run:  svc.RefreshStats,
	}); err != nil {
		return err
	}
	if gc, ok := store.(storage.GarbageCollector); ok {
		if err := sched.Add(scheduler.Job{
			Name: "badger-gc",
			Spec: cfg.Maintenance.BadgerGC,
			Run:  func(context.Context) error { return gc.RunGC() },
		}); err != nil {
			return err
		}
	}

	srv := api.NewServer(api.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Precision:    cfg.Insights.Precision,
	}, svc, logger.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
