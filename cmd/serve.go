package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/scheduler"
	"github.com/netlinkisp/ispadmin/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the subscription scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), noScheduler)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without registering background jobs")
	return cmd
}

func runServe(parent context.Context, noScheduler bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	log := rt.logger
	cfg := rt.cfg

	var jobs *scheduler.Manager
	if cfg.Reconciler.Enabled && !noScheduler {
		loc, err := cfg.Reconciler.Location()
		if err != nil {
			return err
		}
		jobs, err = scheduler.NewManager(scheduler.Options{
			Location:       loc,
			Schedule:       cfg.Reconciler.Schedule,
			Every:          cfg.Reconciler.Every,
			StartImmediate: cfg.Reconciler.StartImmediate,
			RunTimeout:     cfg.Reconciler.RunTimeout,
		}, domain.RealClock{}, log)
		if err != nil {
			return err
		}
		if err := jobs.RegisterReconciler(rt.services.Reconciler); err != nil {
			return err
		}
		if err := jobs.RegisterTokenPurge(rt.services.Tokens); err != nil {
			return err
		}
		jobs.Start()
	} else {
		log.Info("scheduler disabled")
	}

	app := server.NewApp(rt.deps, rt.services)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		listenErr <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("error shutting down HTTP server", "error", err)
	}
	if jobs != nil {
		if err := jobs.Shutdown(); err != nil {
			log.Warn("error shutting down scheduler", "error", err)
		}
	}
	return nil
}
