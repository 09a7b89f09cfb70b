package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/quorum/internal/archive"
	"github.com/alfredjeanlab/quorum/internal/config"
	"github.com/alfredjeanlab/quorum/internal/events"
	"github.com/alfredjeanlab/quorum/internal/quorum"
	"github.com/alfredjeanlab/quorum/internal/server"
	"github.com/alfredjeanlab/quorum/internal/store"
	"github.com/alfredjeanlab/quorum/internal/sweep"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the quorum server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't build an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		governance, err := config.LoadGovernance(cfg.GovernanceFile)
		if err != nil {
			return err
		}

		st, backend, err := openStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		logger.Info("store opened", "backend", backend)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (QUORUM_NATS_URL not set)")
		}

		srv := server.New(st, publisher, logger, quorum.WithDefaultGovernance(governance))
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var sweeper *sweep.Scheduler
		if cfg.SweepInterval > 0 {
			sweeper = sweep.NewScheduler(srv.Engine(), cfg.SweepInterval, logger)
			sweeper.Start()
			logger.Info("sweep scheduler started", "interval", cfg.SweepInterval)
		} else {
			logger.Warn("sweep scheduler disabled; expired decisions resolve only on POST /v1/sweep")
		}

		archiver := startArchive(cfg, st, logger)

		if cfg.AuthToken == "" {
			logger.Warn("auth disabled (QUORUM_AUTH_TOKEN not set)")
		}
		logger.Info("quorum server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.Shutdown()

		if sweeper != nil {
			sweeper.Stop()
			logger.Info("sweep scheduler stopped")
		}
		if archiver != nil {
			archiver.Stop()
			logger.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// startArchive starts the ledger archive when a destination is configured.
// Destinations that fail to initialise are logged and skipped.
func startArchive(cfg *config.Config, st store.Store, logger *slog.Logger) *archive.Scheduler {
	if !cfg.ArchiveEnabled() {
		return nil
	}
	var dests []archive.Destination
	if cfg.ArchiveS3Bucket != "" {
		s3Dest, err := archive.NewS3Destination(context.Background(),
			cfg.ArchiveS3Bucket,
			cfg.ArchiveS3Key,
			cfg.ArchiveS3Region,
			cfg.ArchiveS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 archive destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
		}
	}
	if cfg.ArchiveGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitFile, cfg.ArchiveGitBranch))
		logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "file", cfg.ArchiveGitFile)
	}
	if len(dests) == 0 {
		return nil
	}
	s := archive.NewScheduler(st, dests, cfg.ArchiveInterval, logger)
	s.Start()
	logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
	return s
}
