package news

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MinGrade 与 MaxGrade 是相关度评分的取值范围
const (
	MinGrade = 1
	MaxGrade = 5
)

var ErrInvalidItem = errors.New("invalid news item")

// Item 是一次抓取后经过清洗、评分、跳转解析的新闻
type Item struct {
	Title         string `json:"title"`
	Grade         int    `json:"grade"`
	URL           string `json:"url"`
	Publisher     string `json:"publisher"`
	PublishedDate string `json:"published_date"`
}

// Validate 在入库前校验必填字段
func (it Item) Validate() error {
	if strings.TrimSpace(it.URL) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidItem)
	}
	if it.Grade < MinGrade || it.Grade > MaxGrade {
		return fmt.Errorf("%w: grade %d out of range", ErrInvalidItem, it.Grade)
	}
	return nil
}

// Batch 保持源 feed 的顺序；序列化为 {"0": Item, "1": Item, ...}
type Batch []Item

func (b Batch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, it := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')
		bs, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		buf.Write(bs)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	var raw map[string]Item
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx := make([]int, 0, len(raw))
	byIdx := make(map[int]Item, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return fmt.Errorf("batch: invalid index %q", k)
		}
		idx = append(idx, i)
		byIdx[i] = v
	}
	sort.Ints(idx)

	out := make(Batch, 0, len(idx))
	for _, i := range idx {
		out = append(out, byIdx[i])
	}
	*b = out
	return nil
}

// NormalizeTopic 折叠空白，结果作为存储主键
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(topic), " ")
}
