package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tiltball/haptics"
	"tiltball/network"
	"tiltball/room"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		pool, err := haptics.NewPool(cfg.Haptics.PoolSize, log.Named("haptics"))
		if err != nil {
			return err
		}
		defer pool.Release()

		rooms := room.NewManager(room.Options{
			FrameHz:     cfg.Room.FrameHz,
			BroadcastHz: cfg.Room.BroadcastHz,
			Pool:        pool,
			Logger:      log.Named("room"),
		})
		defer rooms.Close()

		srv := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: network.NewRouter(rooms, network.Options{
				ReadLimit:    cfg.Server.ReadLimit,
				SendBuffer:   cfg.Server.SendBuffer,
				PingInterval: cfg.Server.PingInterval,
				PongWait:     cfg.Server.PongWait,
			}, log),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("ws", "/ws/{code}"))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
			defer cancel()
			log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
