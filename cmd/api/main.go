package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/CompetitorNews/internal/api"
	"github.com/LJTian/CompetitorNews/internal/collector"
	"github.com/LJTian/CompetitorNews/internal/config"
	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/pipeline"
	"github.com/LJTian/CompetitorNews/internal/publisher"
	"github.com/LJTian/CompetitorNews/internal/scheduler"
	"github.com/LJTian/CompetitorNews/internal/storage"
)

func main() {
	log := logger.New("api")
	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.CacheTTL, log)
	if err != nil {
		log.Error("init store", slog.Any("err", err))
		os.Exit(1)
	}

	pub, err := publisher.New(cfg.Publisher, log)
	if err != nil {
		log.Error("init publisher", slog.Any("err", err))
		os.Exit(1)
	}
	defer pub.Close()

	fetcher := collector.NewGoogleNewsFetcher(collector.GoogleNewsOptions{
		Host:       cfg.FeedHost,
		MaxResults: cfg.MaxResults,
		Timeout:    cfg.FeedTimeout,
		Resolver:   collector.NewLinkResolver(cfg.ResolveTimeout),
		Logger:     log,
	})
	p := pipeline.New(fetcher, store, pub, cfg.Publisher.Timeout, log)

	var sched *scheduler.Scheduler
	if cfg.RefreshCron != "" {
		sched, err = scheduler.New(cfg.RefreshCron, store, p, log)
		if err != nil {
			log.Error("init scheduler", slog.Any("err", err))
			os.Exit(1)
		}
		sched.Start()
	}

	r := gin.Default()
	api.NewServer(p, store, log).RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		// 抓取 + 跳转解析 + 发布都在请求内完成
		WriteTimeout: cfg.FeedTimeout + time.Duration(cfg.MaxResults)*cfg.ResolveTimeout + cfg.Publisher.Timeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("starting api server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server exit", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
