package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
	"github.com/LJTian/CompetitorNews/internal/processor"
)

const (
	DefaultFeedHost   = "https://news.google.com"
	DefaultMaxResults = 10

	gnClientTimeout = 10 * time.Second
	// 最近 7 天 + 英文/美国区
	gnQuerySuffix = "%20when%3A7d&hl=en-US&gl=US&ceid=US:en"
	gnSourceKey   = "source_title"
)

type GoogleNewsOptions struct {
	Host       string
	MaxResults int
	Timeout    time.Duration
	Resolver   Resolver
	Logger     *slog.Logger
}

// GoogleNewsFetcher 通过 Google News RSS 搜索接口按主题抓取新闻
type GoogleNewsFetcher struct {
	host       string
	maxResults int
	resolver   Resolver
	parser     *gofeed.Parser
	log        *slog.Logger
}

func NewGoogleNewsFetcher(opts GoogleNewsOptions) *GoogleNewsFetcher {
	if opts.Host == "" {
		opts.Host = DefaultFeedHost
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = gnClientTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = NewLinkResolver(defaultResolveTimeout)
	}

	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: opts.Timeout}
	fp.UserAgent = "CompetitorNewsBot/1.0"
	fp.RSSTranslator = &sourceTranslator{}

	return &GoogleNewsFetcher{
		host:       strings.TrimRight(opts.Host, "/"),
		maxResults: opts.MaxResults,
		resolver:   opts.Resolver,
		parser:     fp,
		log:        logger.OrDiscard(opts.Logger),
	}
}

func (g *GoogleNewsFetcher) Name() string {
	return "google_news"
}

func (g *GoogleNewsFetcher) Fetch(ctx context.Context, topic string) []news.Item {
	items, err := g.Search(ctx, topic)
	if err != nil {
		g.log.Error("fetch news failed", slog.String("topic", topic), slog.Any("err", err))
		return nil
	}
	return items
}

// Search 与 Fetch 相同，但把错误返回给调用方。空白主题不发起请求。
func (g *GoogleNewsFetcher) Search(ctx context.Context, topic string) ([]news.Item, error) {
	tokens := strings.Fields(topic)
	if len(tokens) == 0 {
		return nil, nil
	}

	feedURL := g.searchURL(tokens)
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("google news: parse %s: %w", feedURL, err)
	}

	entries := make([]processor.Entry, 0, g.maxResults)
	for i, it := range feed.Items {
		if i >= g.maxResults {
			break
		}
		if it == nil || (it.Title == "" && it.Link == "") {
			continue
		}
		if it.Link == "" {
			return nil, fmt.Errorf("google news: entry %d has no link", i)
		}

		link, err := g.resolver.Resolve(ctx, it.Link, g.host)
		if err != nil {
			return nil, fmt.Errorf("google news: %w", err)
		}
		entries = append(entries, processor.Entry{
			Title:     it.Title,
			URL:       link,
			Publisher: it.Custom[gnSourceKey],
			Published: it.Published,
		})
	}

	return processor.Process(entries), nil
}

func (g *GoogleNewsFetcher) searchURL(tokens []string) string {
	escaped := make([]string, 0, len(tokens))
	for _, t := range tokens {
		escaped = append(escaped, url.QueryEscape(t))
	}
	return g.host + "/rss/search?q=" + strings.Join(escaped, "%20") + gnQuerySuffix
}

// sourceTranslator 在默认转换之外保留 RSS <source> 的媒体名
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	out, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}
	rf, ok := feed.(*rss.Feed)
	if !ok {
		return out, nil
	}
	for i, it := range rf.Items {
		if i >= len(out.Items) || it == nil || it.Source == nil || out.Items[i] == nil {
			continue
		}
		if out.Items[i].Custom == nil {
			out.Items[i].Custom = make(map[string]string, 1)
		}
		out.Items[i].Custom[gnSourceKey] = strings.TrimSpace(it.Source.Title)
	}
	return out, nil
}
