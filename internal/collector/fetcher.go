package collector

import (
	"context"

	"github.com/LJTian/CompetitorNews/internal/news"
)

// Fetcher 抽象按主题检索新闻的数据源
type Fetcher interface {
	Name() string
	// Fetch 出错时记录日志并返回空结果，不返回部分数据
	Fetch(ctx context.Context, topic string) []news.Item
}

// Resolver 把 feed 条目链接解析为文章的真实地址
type Resolver interface {
	Resolve(ctx context.Context, rawLink, feedHostPrefix string) (string, error)
}
