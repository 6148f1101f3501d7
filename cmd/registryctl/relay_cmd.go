package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	registryoutbox "github.com/iota-uz/entity-registry/modules/registry/infrastructure/outbox"
	"github.com/iota-uz/entity-registry/pkg/metrics"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Deliver committed registry events from the outbox until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, ctx, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			opts := rt.conf.Outbox
			table, err := outbox.ParseIdentifier(opts.Table)
			if err != nil {
				return withCode(exitUsage, err)
			}
			log := rt.app.Logger().WithFields(logrus.Fields{
				"component": "outbox",
				"table":     outbox.TableLabel(table),
			})

			relay, err := outbox.NewRelay(rt.pool, table, registryoutbox.NewDispatcher(rt.app.EventPublisher()), outbox.RelayOptions{
				PollInterval:    opts.RelayPollInterval,
				BatchSize:       opts.RelayBatchSize,
				LockTTL:         opts.RelayLockTTL,
				MaxAttempts:     opts.RelayMaxAttempts,
				SingleActive:    opts.RelaySingleActive,
				DispatchTimeout: opts.RelayDispatchTimeout,
				Logger:          log,
			})
			if err != nil {
				return withCode(exitUsage, err)
			}

			if opts.CleanerEnabled {
				cleaner, err := outbox.NewCleaner(rt.pool, table, outbox.CleanerOptions{
					Enabled:               true,
					Interval:              opts.CleanerInterval,
					Retention:             opts.CleanerRetention,
					DeadRetention:         opts.CleanerDeadRetention,
					DeadAttemptsThreshold: opts.RelayMaxAttempts,
					Logger:                log,
				})
				if err != nil {
					return withCode(exitUsage, err)
				}
				go func() {
					if err := cleaner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.WithError(err).Error("outbox: cleaner stopped")
					}
				}()
			}

			if rt.conf.Prometheus.Enabled {
				srv := metrics.NewServer(rt.conf.Prometheus.Addr, rt.conf.Prometheus.Path)
				go func() {
					if err := metrics.Serve(ctx, srv); err != nil {
						log.WithError(err).Error("metrics server stopped")
					}
				}()
			}

			log.Info("outbox: relay started")
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return withCode(exitDB, err)
			}
			log.Info("outbox: relay stopped")
			return nil
		},
	}
}
