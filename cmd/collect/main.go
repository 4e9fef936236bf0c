package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LJTian/CompetitorNews/internal/collector"
	"github.com/LJTian/CompetitorNews/internal/config"
	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
	"github.com/LJTian/CompetitorNews/internal/pipeline"
	"github.com/LJTian/CompetitorNews/internal/publisher"
	"github.com/LJTian/CompetitorNews/internal/storage"
)

// 一次性执行：对命令行给出的主题各跑一遍 pipeline，结果打印到 stdout
//
//	collect "volvo trucks" daimler
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: collect <topic> [topic...]")
		os.Exit(2)
	}
	os.Exit(run(os.Args[1:]))
}

func run(topics []string) int {
	log := logger.New("collect")
	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		return 1
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.CacheTTL, log)
	if err != nil {
		log.Error("init store", slog.Any("err", err))
		return 1
	}

	pub, err := publisher.New(cfg.Publisher, log)
	if err != nil {
		log.Error("init publisher", slog.Any("err", err))
		return 1
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

	failed := collect(context.Background(), p, topics, os.Stdout, log)
	if failed {
		return 1
	}
	return 0
}

type runner interface {
	Run(ctx context.Context, topic string) (news.Batch, error)
}

// collect 逐个主题执行并把结果写到 out；返回是否有失败
func collect(ctx context.Context, r runner, topics []string, out io.Writer, log *slog.Logger) bool {
	failed := false
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, topic := range topics {
		batch, err := r.Run(ctx, topic)
		if errors.Is(err, pipeline.ErrNoData) {
			log.Warn("no news data found", slog.String("topic", strings.TrimSpace(topic)))
			continue
		}
		if err != nil {
			log.Error("run pipeline", slog.String("topic", topic), slog.Any("err", err))
			failed = true
			continue
		}
		if err := enc.Encode(map[string]any{"topic": topic, "news": batch}); err != nil {
			log.Error("write result", slog.String("topic", topic), slog.Any("err", err))
			failed = true
		}
	}
	return failed
}
