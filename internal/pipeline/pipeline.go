package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/CompetitorNews/internal/collector"
	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
)

const defaultPublishTimeout = 5 * time.Second

// ErrNoData 表示主题为空、feed 无结果或抓取失败，三者对调用方一致
var ErrNoData = errors.New("no news data found")

// Store 是 pipeline 唯一的写入口
type Store interface {
	SaveBatch(ctx context.Context, topic string, items []news.Item) error
}

// Publisher 只需要发布能力
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

type Pipeline struct {
	fetcher        collector.Fetcher
	store          Store
	publisher      Publisher
	publishTimeout time.Duration
	log            *slog.Logger

	mu    sync.Mutex
	locks map[string]*topicLock
}

// topicLock 按引用计数回收，map 只保留正在运行或等待中的主题
type topicLock struct {
	mu   sync.Mutex
	refs int
}

func New(f collector.Fetcher, s Store, p Publisher, publishTimeout time.Duration, log *slog.Logger) *Pipeline {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &Pipeline{
		fetcher:        f,
		store:          s,
		publisher:      p,
		publishTimeout: publishTimeout,
		log:            logger.OrDiscard(log),
		locks:          make(map[string]*topicLock),
	}
}

// Run 抓取 -> 入库 -> 发布，步骤严格串行；同一主题的多次调用互斥执行。
// 发布失败只记录日志，不影响已提交的数据。
func (p *Pipeline) Run(ctx context.Context, topic string) (news.Batch, error) {
	key := news.NormalizeTopic(topic)
	if key == "" {
		return nil, ErrNoData
	}

	unlock := p.lock(key)
	defer unlock()

	items := p.fetcher.Fetch(ctx, topic)
	if len(items) == 0 {
		p.log.Warn("no news data found", slog.String("topic", key), slog.String("source", p.fetcher.Name()))
		return nil, ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.store.SaveBatch(ctx, key, items); err != nil {
		return nil, fmt.Errorf("save batch for %q: %w", key, err)
	}

	batch := news.Batch(items)
	p.publish(ctx, key, batch)

	// 条数 = 本轮抓取返回的数量；表中只保留最后一条
	p.log.Info("topic processed", slog.String("topic", key), slog.Int("items", len(batch)))
	return batch, nil
}

func (p *Pipeline) publish(ctx context.Context, topic string, batch news.Batch) {
	if p.publisher == nil {
		return
	}
	if ctx.Err() != nil {
		p.log.Warn("request canceled, skip publish", slog.String("topic", topic))
		return
	}

	body, err := json.Marshal(batch)
	if err != nil {
		p.log.Error("marshal batch", slog.String("topic", topic), slog.Any("err", err))
		return
	}

	pctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	if err := p.publisher.Publish(pctx, body); err != nil {
		p.log.Error("publish batch failed", slog.String("topic", topic), slog.Any("err", err))
		return
	}
	p.log.Info("news data published", slog.String("topic", topic), slog.Int("bytes", len(body)))
}

func (p *Pipeline) lock(topic string) func() {
	p.mu.Lock()
	l, ok := p.locks[topic]
	if !ok {
		l = &topicLock{}
		p.locks[topic] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, topic)
		}
		p.mu.Unlock()
	}
}
