package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LJTian/CompetitorNews/internal/config"
)

// Publisher 把序列化好的结果批次投递到下游
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

// Binding 是固定的 exchange/queue/routing key 绑定
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

var DefaultBinding = Binding{
	Exchange:   "my_exchange",
	Queue:      "my_queue",
	RoutingKey: "my_routing_key",
}

// New 按配置选择后端
func New(cfg config.Publisher, log *slog.Logger) (Publisher, error) {
	binding := Binding{Exchange: cfg.Exchange, Queue: cfg.Queue, RoutingKey: cfg.RoutingKey}
	switch cfg.Backend {
	case config.BackendAMQP:
		return NewAMQP(cfg.AMQPURL, binding, log), nil
	case config.BackendKafka:
		return NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, binding.RoutingKey)
	default:
		return nil, fmt.Errorf("unknown publisher backend %q", cfg.Backend)
	}
}
