package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignledger/internal/handler"
	"campaignledger/internal/infrastructure/database"
	"campaignledger/internal/infrastructure/mq"
	"campaignledger/internal/job"
	"campaignledger/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runners := []interface{ Start(context.Context) }{
			job.NewOutboxSender(repository.NewOutboxRepository(a.db), producer, cfg, log),
			job.NewExpirySweeper(a.reservations, cfg, log),
			job.NewDepositTimeoutJob(a.wallet, cfg, log),
		}
		var wg sync.WaitGroup
		for _, r := range runners {
			wg.Add(1)
			go func(r interface{ Start(context.Context) }) {
				defer wg.Done()
				r.Start(ctx)
			}(r)
		}

		router := handler.SetupRouter(handler.NewHandler(a.campaigns, a.reservations, a.wallet, log), log)
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("http server listening", zap.Int("port", cfg.Server.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err := <-errCh:
			if err != nil {
				stop()
				wg.Wait()
				return fmt.Errorf("http server: %w", err)
			}
		}

		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		wg.Wait()

		log.Info("server stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.InitMySQL(&cfg.MySQL)
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue reservations and report stale wallet transactions once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		res, err := job.NewExpirySweeper(a.reservations, cfg, log).SweepOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		stale := job.NewDepositTimeoutJob(a.wallet, cfg, log).RunOnce(ctx)

		log.Info("sweep done",
			zap.Int("expired", res.Expired),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Int("stale_transactions", stale))
		return nil
	},
}
