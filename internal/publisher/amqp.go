package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/LJTian/CompetitorNews/internal/logger"
)

const defaultDialTimeout = 5 * time.Second

// AMQP 每次发布都单独建立连接，发布完成即释放，不持有进程级连接
type AMQP struct {
	url     string
	binding Binding
	log     *slog.Logger

	dial func(url string, timeout time.Duration) (*amqp.Connection, error)
}

func NewAMQP(url string, binding Binding, log *slog.Logger) *AMQP {
	if binding.Exchange == "" {
		binding = DefaultBinding
	}
	return &AMQP{url: url, binding: binding, log: logger.OrDiscard(log), dial: dialTimeout}
}

func (p *AMQP) Publish(ctx context.Context, body []byte) error {
	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return fmt.Errorf("amqp: dial: %w", context.DeadlineExceeded)
	}

	conn, err := p.dial(p.url, timeout)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			p.log.Warn("amqp: close connection", slog.Any("err", err))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	defer ch.Close()

	if err := p.declare(ch); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, p.binding.Exchange, p.binding.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish: %w", err)
	}
	return nil
}

// dialTimeout 与 amqp.Dial 相同，只是 TCP 连接和握手都受 timeout 约束
func dialTimeout(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// declare 幂等地声明 exchange、queue 并绑定
func (p *AMQP) declare(ch *amqp.Channel) error {
	b := p.binding
	if err := ch.ExchangeDeclare(b.Exchange, amqp.ExchangeDirect, false, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare exchange %s: %w", b.Exchange, err)
	}
	if _, err := ch.QueueDeclare(b.Queue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", b.Queue, err)
	}
	if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
		return fmt.Errorf("amqp: bind %s -> %s: %w", b.Exchange, b.Queue, err)
	}
	return nil
}

// Close 无常驻连接，无需释放
func (p *AMQP) Close() error {
	return nil
}
