package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mirrorlake/chesswire/internal/admin"
	"github.com/mirrorlake/chesswire/internal/config"
	"github.com/mirrorlake/chesswire/internal/fanout"
	"github.com/mirrorlake/chesswire/internal/obslog"
	"github.com/mirrorlake/chesswire/internal/session"
	"github.com/mirrorlake/chesswire/internal/wirehub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		pcancel()
		log.Fatalf("redis ping error: %v", err)
	}
	pcancel()

	store := session.NewRedisStore(rdb, time.Duration(cfg.SessionTTLSec)*time.Second)
	machine := session.NewMachine(store, logger)
	machine.SetIDPolicy(cfg.IDLength, cfg.IDAttempts)

	if cfg.DatabaseURL != "" {
		archive, err := session.NewArchive(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer func() { _ = archive.Close() }()
		machine.AttachArchive(archive)
	}

	hub := wirehub.NewHub()
	fan := fanout.New(hub, logger)
	disp := wirehub.NewDispatcher(machine, fan, logger)
	wsrv := wirehub.NewServer(hub, disp, logger)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: wsrv.Handler()}
	go func() {
		logger.Info("listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen_error", zap.Error(err))
		}
	}()

	adm := admin.NewServer(rdb, hub, logger)
	go func() {
		if err := adm.ListenAndServe(cfg.AdminAddr); err != nil {
			logger.Error("admin_listen_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = httpSrv.Shutdown(sctx)
	_ = adm.Shutdown()
	_ = rdb.Close()
}
