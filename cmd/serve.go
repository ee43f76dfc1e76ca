package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/backend/httpapi"
	"github.com/example/charter-desk/internal/backend/postgres"
	"github.com/example/charter-desk/internal/config"
	"github.com/example/charter-desk/internal/domain/fleet"
	"github.com/example/charter-desk/internal/netstatus"
	"github.com/example/charter-desk/internal/queue"
	"github.com/example/charter-desk/internal/store"
	"github.com/example/charter-desk/internal/web"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher and the status web surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			log := logrus.New()
			if cfg.DevMode {
				log.SetLevel(logrus.DebugLevel)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			yachts, err := fleet.LoadFile(cfg.FleetFile)
			if err != nil {
				return err
			}
			registry := fleet.NewRegistry(yachts...)

			var (
				api    backend.API
				pinger netstatus.Pinger
			)
			if cfg.DatabaseURL != "" {
				repo, err := postgres.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer repo.Close()
				if err := repo.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if migrateUp {
					if err := repo.Migrate(ctx); err != nil {
						return err
					}
				}
				api, pinger = repo, repo
			} else {
				client := httpapi.New(cfg.BackendURL)
				api, pinger = client, client
			}

			manager := store.NewManager(api, log)
			manager.UseFleet(registry)
			if repo, ok := api.(*postgres.Repo); ok {
				reservations, err := repo.List(ctx)
				if err != nil {
					return err
				}
				manager.SetAll(reservations)
			}

			storage, err := queue.OpenStorage(filepath.Join(cfg.DataDir, "queue"))
			if err != nil {
				return err
			}
			q, err := queue.Open(api, storage, log, queue.Config{
				MaxPending:   cfg.QueueMaxPending,
				MaxRetries:   cfg.QueueMaxRetries,
				ItemDelay:    cfg.QueueItemDelay,
				RetryBackoff: cfg.QueueBackoff,
			})
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			monitor := netstatus.NewMonitor(pinger, cfg.PingInterval, log)
			monitor.Notify(q.SetOnline)
			go func() { _ = monitor.Run(ctx) }()

			ws := &web.Server{Store: manager, Queue: q, Fleet: registry, Log: log}
			log.WithField("addr", cfg.ListenAddr).Info("serving")
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
