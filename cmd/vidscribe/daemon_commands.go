package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	pg "vidscribe/internal/infra/db/postgres"
	opshttp "vidscribe/internal/infra/http"
	"vidscribe/internal/infra/kafka"
	"vidscribe/internal/infra/outbox"
	"vidscribe/internal/infra/sched"
	"vidscribe/internal/infra/scheduler"
	"vidscribe/internal/infra/worker"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var loops int
	var noMaintenance bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Claim and process videos until interrupted",
		Long: "Runs the claim loops, the background expander, rescue, reprocess and outbox relay, " +
			"and the ops endpoint. SIGINT/SIGTERM stop claiming; videos already claimed finish first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := ctx.openApp(sigCtx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if loops > 0 {
				a.cfg.Worker.Loops = loops
			}

			exec, err := a.executor(sigCtx)
			if err != nil {
				return err
			}

			sch := scheduler.NewScheduler(a.log)
			if !noMaintenance {
				if err := a.addMaintenance(sigCtx, sch); err != nil {
					return err
				}
			}
			sch.Start(sigCtx)
			defer sch.Stop()

			srv := a.startOpsServer()
			defer shutdownServer(srv)

			proc := worker.NewVideoProcessor(a.videos, exec, worker.Options{
				PollInterval: a.cfg.Worker.PollInterval,
				PollJitter:   a.cfg.Worker.PollJitter,
				ErrorBackoff: a.cfg.Worker.ErrorBackoff,
			}, a.log)
			proc.Start(sigCtx, worker.NewPool(a.cfg.Worker.Loops))
			return nil
		},
	}
	cmd.Flags().IntVar(&loops, "loops", 0, "Claim loops in this process (overrides worker.loops)")
	cmd.Flags().BoolVar(&noMaintenance, "no-maintenance", false, "Only process videos; skip expander, rescue, reprocess and relay")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops endpoint and background maintenance without processing videos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := ctx.openApp(sigCtx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			sch := scheduler.NewScheduler(a.log)
			if err := a.addMaintenance(sigCtx, sch); err != nil {
				return err
			}
			sch.Start(sigCtx)
			defer sch.Stop()

			srv := a.startOpsServer()
			defer shutdownServer(srv)

			<-sigCtx.Done()
			a.log.Info().Msg("shutdown requested")
			return nil
		},
	}
}

// addMaintenance registers the periodic runners shared by worker and serve.
func (a *app) addMaintenance(ctx context.Context, sch *scheduler.Scheduler) error {
	cfg := a.cfg
	expander, err := a.expanderUC(ctx)
	if err != nil {
		return err
	}
	sch.Add("expander", sched.NewExpanderWorker(cfg.Expander.Interval, cfg.Expander.BatchSize, expander, a.log))
	sch.Add("rescue", sched.NewRescueWorker(cfg.Rescue.Interval, a.rescueUC, a.log))
	if cfg.Reprocess.Enabled {
		sch.Add("reprocess", sched.NewReprocessWorker(cfg.Reprocess.Interval, a.reprocessUC, a.log))
	}
	if len(cfg.Outbox.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Outbox.Brokers, cfg.Outbox.Topic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = producer.Close() })
		sch.Add("outbox", outbox.NewRelay(a.outbox, producer, cfg.Outbox.Interval, cfg.Outbox.BatchSize, a.log))
	} else {
		a.log.Warn().Msg("outbox.brokers not set; events stay in the outbox table")
	}
	sch.Add("db-pool-stats", runnerFunc(func(ctx context.Context) error {
		pg.ReportPoolStats(ctx, a.pool, 15*time.Second, a.log)
		return ctx.Err()
	}))
	return nil
}

func (a *app) startOpsServer() *opshttp.Server {
	srv := opshttp.NewServer(a.queryUC, a.pool, a.log)
	go func() {
		if err := srv.Start(a.cfg.Admin.Port); err != nil {
			a.log.Error().Err(err).Msg("ops server stopped")
		}
	}()
	return srv
}

func shutdownServer(srv *opshttp.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
