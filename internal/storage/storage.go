package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
)

const defaultCacheTTL = 5 * time.Minute

var (
	ErrNotFound   = errors.New("topic not found")
	ErrEmptyTopic = errors.New("empty topic")
)

// TopicRecord 每个主题一行，只保留最近一次写入的新闻
type TopicRecord struct {
	ID    uint                          `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic string                        `gorm:"column:oem;size:255;uniqueIndex;not null" json:"topic"`
	News  datatypes.JSONType[news.Item] `gorm:"column:news" json:"news"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (TopicRecord) TableName() string {
	return "competitor_news"
}

func (r TopicRecord) LatestResult() news.Item {
	return r.News.Data()
}

type Store struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration

	log *slog.Logger
}

// NewStore 连接 Postgres 并迁移表结构；redisAddr 为空时不启用缓存
func NewStore(dsn, redisAddr string, cacheTTL time.Duration, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	log = logger.OrDiscard(log)
	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed", slog.Any("err", err))
		}
	}
	return newStore(db, rdb, cacheTTL, log)
}

// newStore 迁移表结构并组装 Store，数据库方言由调用方决定
func newStore(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration, log *slog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&TopicRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Store{DB: db, Redis: rdb, CacheTTL: cacheTTL, log: logger.OrDiscard(log)}, nil
}

// Upsert 按主题插入或覆盖，单条语句保证原子性
func (s *Store) Upsert(ctx context.Context, topic string, item news.Item) error {
	return upsert(s.DB.WithContext(ctx), topic, item)
}

func upsert(tx *gorm.DB, topic string, item news.Item) error {
	topic = news.NormalizeTopic(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := item.Validate(); err != nil {
		return err
	}

	rec := TopicRecord{Topic: topic, News: datatypes.NewJSONType(item)}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "oem"}},
		DoUpdates: clause.AssignmentColumns([]string{"news", "updated_at"}),
	}).Create(&rec).Error
}

// SaveBatch 在一个事务里按顺序 upsert 全部条目，最后一条即为该主题的持久化结果。
// 提交成功后把整批结果写入 Redis，缓存失败只记录日志。
func (s *Store) SaveBatch(ctx context.Context, topic string, items []news.Item) error {
	if len(items) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, it := range items {
			if err := upsert(tx, topic, it); err != nil {
				return fmt.Errorf("upsert item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cacheBatch(ctx, topic, news.Batch(items))
	return nil
}

func (s *Store) Get(ctx context.Context, topic string) (*TopicRecord, error) {
	var rec TopicRecord
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(gormlogger.Silent)})
	err := silent.WithContext(ctx).Where("oem = ?", news.NormalizeTopic(topic)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestBatch 优先返回缓存中的整批结果，否则退回到表中保存的单条
func (s *Store) LatestBatch(ctx context.Context, topic string) (news.Batch, error) {
	topic = news.NormalizeTopic(topic)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey(topic)).Bytes(); err == nil {
			var cached news.Batch
			if err := json.Unmarshal(bs, &cached); err == nil && len(cached) > 0 {
				return cached, nil
			}
		}
	}

	rec, err := s.Get(ctx, topic)
	if err != nil {
		return nil, err
	}
	return news.Batch{rec.LatestResult()}, nil
}

// ListTopics 按创建顺序返回所有主题
func (s *Store) ListTopics(ctx context.Context) ([]string, error) {
	var topics []string
	if err := s.DB.WithContext(ctx).Model(&TopicRecord{}).Order("id ASC").Pluck("oem", &topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *Store) cacheBatch(ctx context.Context, topic string, batch news.Batch) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(batch)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, cacheKey(news.NormalizeTopic(topic)), bs, s.CacheTTL).Err(); err != nil {
		s.log.Warn("cache batch failed", slog.String("topic", topic), slog.Any("err", err))
	}
}

func cacheKey(topic string) string {
	return "news:batch:" + topic
}
