package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doctrans/internal/api"
	"github.com/dgallion1/doctrans/internal/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tr, client := buildTranslator(cfg, log)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		orch := jobs.NewOrchestrator(jobs.Config{
			WorkerCount:  cfg.WorkerCount,
			MaxQueueSize: cfg.MaxQueueSize,
			JobTTL:       cfg.JobTTL,
		}, tr, log)
		orch.Start(ctx)

		srv := api.NewServer(orch, client, log, cfg)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("shutting down...")

			orch.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpServer.Shutdown(shutdownCtx)

			client.Close()
		}()

		log.Info("starting doctrans", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}
