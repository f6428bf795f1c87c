package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tedsta/ted/internal/protocol"
	"github.com/tedsta/ted/internal/session"
	"github.com/tedsta/ted/pkg/config"
	"github.com/tedsta/ted/pkg/database"
	"github.com/tedsta/ted/pkg/logger"
	"github.com/tedsta/ted/pkg/server"
	"github.com/tedsta/ted/pkg/store"
)

func serveCmd() *cobra.Command {
	var addrFlag string
	var configFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host collaborative sessions over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFlag)
			if err != nil {
				return err
			}
			if addrFlag != "" {
				cfg.Addr = addrFlag
			}

			sessCfg := session.Config{
				MaxDocumentSize:  cfg.MaxDocumentSizeKB * 1024,
				BroadcastBufSize: cfg.BroadcastBufferSize,
				SendRateLimit:    rate.Limit(cfg.SendRatePerSecond),
				SendRateBurst:    int(cfg.SendRatePerSecond),
			}

			var backend session.Store
			var dbCount func() (int, error)

			switch {
			case cfg.SQLiteURI != "":
				db, err := database.New(cfg.SQLiteURI)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				backend = database.NewSessionStore(db)
				dbCount = db.Count
				logger.Info("serve: persisting sessions to sqlite at %s", cfg.SQLiteURI)
			case cfg.S3Bucket != "":
				ctx := context.Background()
				b, err := store.NewS3Backend(ctx, cfg.S3Bucket, cfg.S3Prefix)
				if err != nil {
					return fmt.Errorf("open s3 backend: %w", err)
				}
				backend = b
				logger.Info("serve: persisting sessions to s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
			case cfg.StorageDir != "":
				b, err := store.NewLocalBackend(cfg.StorageDir)
				if err != nil {
					return fmt.Errorf("open local store: %w", err)
				}
				backend = b
				logger.Info("serve: persisting sessions under %s", cfg.StorageDir)
			default:
				logger.Info("serve: no persistence backend configured, running in-memory only")
			}

			expiry := time.Duration(cfg.ExpiryDays) * 24 * time.Hour
			manager := session.NewManager(sessCfg, backend, expiry)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := manager.StartReaper(ctx, cfg.ReaperSchedule); err != nil {
				return fmt.Errorf("start reaper: %w", err)
			}

			srv := server.New(manager, server.Options{
				Codec:         protocol.NewCompressingCodec(protocol.BinaryCodec{}, cfg.JoinCompressKB*1024),
				WSReadTimeout: cfg.WSReadTimeout,
				DBCount:       dbCount,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(cfg.Addr)
			}()

			select {
			case <-ctx.Done():
				logger.Info("serve: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&configFlag, "config", "", "path to a YAML config file")
	return cmd
}
