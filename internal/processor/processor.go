package processor

import (
	"strings"

	"github.com/LJTian/CompetitorNews/internal/news"
)

// keywords 是相关度评分使用的固定词表
var keywords = []string{"engine", "diesel", "battery", "truck", "bus", "new", "hydrogen", "power"}

// gradeByMatches 命中关键词个数 -> 评分；未列出的个数（>=7）取 news.MaxGrade
var gradeByMatches = map[int]int{0: 1, 1: 2, 2: 2, 3: 3, 4: 3, 5: 4, 6: 4}

// TruncateTitle 去掉最后一个 "-" 之后的后缀（通常是媒体名）
func TruncateTitle(title string) string {
	if i := strings.LastIndex(title, "-"); i >= 0 {
		return strings.TrimSpace(title[:i])
	}
	return strings.TrimSpace(title)
}

// Grade 统计标题中出现的不同关键词个数并映射到 1~5 分
func Grade(title string) int {
	lower := strings.ToLower(title)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	if g, ok := gradeByMatches[matched]; ok {
		return g
	}
	return news.MaxGrade
}

// Entry 是 feed 中解析出的原始条目，链接已解析完毕
type Entry struct {
	Title     string
	URL       string
	Publisher string
	Published string
}

// Process 把原始条目转换为入库结构，保持输入顺序
func Process(entries []Entry) []news.Item {
	out := make([]news.Item, 0, len(entries))
	for _, e := range entries {
		out = append(out, news.Item{
			Title:         TruncateTitle(e.Title),
			Grade:         Grade(e.Title),
			URL:           e.URL,
			Publisher:     e.Publisher,
			PublishedDate: e.Published,
		})
	}
	return out
}
