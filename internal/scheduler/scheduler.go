package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
	"github.com/LJTian/CompetitorNews/internal/pipeline"
)

const runTimeout = 2 * time.Minute

type TopicLister interface {
	ListTopics(ctx context.Context) ([]string, error)
}

type Runner interface {
	Run(ctx context.Context, topic string) (news.Batch, error)
}

// Scheduler 定时对已存储的主题重新抓取
type Scheduler struct {
	cron   *cron.Cron
	topics TopicLister
	runner Runner
	log    *slog.Logger
}

func New(spec string, topics TopicLister, runner Runner, log *slog.Logger) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		topics: topics,
		runner: runner,
		log:    logger.OrDiscard(log),
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	s.log.Info("start refresh job")

	ctx := context.Background()
	topics, err := s.topics.ListTopics(ctx)
	if err != nil {
		s.log.Error("list topics", slog.Any("err", err))
		return
	}

	// 逐个主题串行执行，与单次请求的处理顺序一致
	refreshed := 0
	for _, topic := range topics {
		rctx, cancel := context.WithTimeout(ctx, runTimeout)
		batch, err := s.runner.Run(rctx, topic)
		cancel()
		switch {
		case errors.Is(err, pipeline.ErrNoData):
			s.log.Warn("refresh got no data", slog.String("topic", topic))
		case err != nil:
			s.log.Error("refresh topic", slog.String("topic", topic), slog.Any("err", err))
		default:
			refreshed++
			s.log.Debug("refresh topic done", slog.String("topic", topic), slog.Int("items", len(batch)))
		}
	}

	s.log.Info("refresh job done", slog.Int("topics", len(topics)), slog.Int("refreshed", refreshed))
}
