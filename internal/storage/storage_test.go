package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/LJTian/CompetitorNews/internal/news"
)

// openSQLiteStore 每个测试一个独立的内存库，单连接保证事务和查询看到同一个库
func openSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := newStore(db, nil, time.Minute, nil)
	require.NoError(t, err)
	return s
}

// openPostgresStore 需要 TEST_POSTGRES_DSN；TEST_REDIS_ADDR 可选
func openPostgresStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	s, err := NewStore(dsn, os.Getenv("TEST_REDIS_ADDR"), time.Minute, nil)
	require.NoError(t, err)
	return s
}

// eachStore 在 SQLite 内存库上总是运行，Postgres 按环境变量启用
func eachStore(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLiteStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, openPostgresStore(t)) })
}

// testTopic 生成唯一主题并在测试结束时清理
func testTopic(t *testing.T, s *Store) string {
	t.Helper()
	topic := fmt.Sprintf("test topic %s %d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		s.DB.Where("oem = ?", topic).Delete(&TopicRecord{})
		if s.Redis != nil {
			s.Redis.Del(context.Background(), cacheKey(topic))
		}
	})
	return topic
}

func countRows(t *testing.T, s *Store, topic string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Model(&TopicRecord{}).Where("oem = ?", topic).Count(&n).Error)
	return n
}

func TestUpsertIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		topic := testTopic(t, s)
		item := news.Item{Title: "Test News 1", Grade: 2, URL: "https://example.com/news1"}

		require.NoError(t, s.Upsert(ctx, topic, item))
		require.NoError(t, s.Upsert(ctx, topic, item))

		require.Equal(t, int64(1), countRows(t, s, topic))
		rec, err := s.Get(ctx, topic)
		require.NoError(t, err)
		require.Equal(t, item, rec.LatestResult())
	})
}

func TestUpsertOverwrites(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		topic := testTopic(t, s)

		require.NoError(t, s.Upsert(ctx, topic, news.Item{Title: "old", Grade: 1, URL: "https://a"}))
		first, err := s.Get(ctx, topic)
		require.NoError(t, err)

		require.NoError(t, s.Upsert(ctx, topic, news.Item{Title: "new", Grade: 2, URL: "https://b"}))
		second, err := s.Get(ctx, topic)
		require.NoError(t, err)

		require.Equal(t, first.ID, second.ID)
		require.Equal(t, "new", second.LatestResult().Title)
	})
}

func TestSaveBatchLastWriteWins(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		topic := testTopic(t, s)
		items := []news.Item{
			{Title: "Test News 1", Grade: 1, URL: "https://example.com/news1"},
			{Title: "Test News 2", Grade: 1, URL: "https://example.com/news2"},
		}

		require.NoError(t, s.SaveBatch(ctx, topic, items))
		require.Equal(t, int64(1), countRows(t, s, topic))

		rec, err := s.Get(ctx, topic)
		require.NoError(t, err)
		require.Equal(t, items[1], rec.LatestResult())

		batch, err := s.LatestBatch(ctx, topic)
		require.NoError(t, err)
		if s.Redis != nil {
			require.Equal(t, news.Batch(items), batch)
		} else {
			require.Equal(t, news.Batch{items[1]}, batch)
		}
	})
}

func TestSaveBatchRollsBackOnInvalidItem(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		topic := testTopic(t, s)
		prior := news.Item{Title: "prior", Grade: 3, URL: "https://prior"}
		require.NoError(t, s.Upsert(ctx, topic, prior))

		err := s.SaveBatch(ctx, topic, []news.Item{
			{Title: "ok", Grade: 2, URL: "https://ok"},
			{Title: "bad", Grade: 0, URL: "https://bad"},
		})
		require.ErrorIs(t, err, news.ErrInvalidItem)

		rec, err := s.Get(ctx, topic)
		require.NoError(t, err)
		require.Equal(t, prior, rec.LatestResult())
	})
}

func TestSaveBatchDatabaseUnavailable(t *testing.T) {
	s := openSQLiteStore(t)
	sqlDB, err := s.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = s.SaveBatch(context.Background(), "volvo", []news.Item{{Title: "a", Grade: 1, URL: "https://a"}})
	require.Error(t, err)
}

func TestGetMissingAndEmptyTopic(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, fmt.Sprintf("missing %d", time.Now().UnixNano()))
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, s.Upsert(ctx, "   ", news.Item{Grade: 1, URL: "https://a"}), ErrEmptyTopic)
	})
}

func TestListTopicsIncludesSaved(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		topic := testTopic(t, s)
		require.NoError(t, s.Upsert(ctx, topic, news.Item{Grade: 1, URL: "https://a"}))

		topics, err := s.ListTopics(ctx)
		require.NoError(t, err)
		require.Contains(t, topics, topic)
	})
}

func TestCacheKey(t *testing.T) {
	require.Equal(t, "news:batch:volvo trucks", cacheKey("volvo trucks"))
}

func TestTableName(t *testing.T) {
	require.Equal(t, "competitor_news", TopicRecord{}.TableName())
}
