package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "soon")
	if got := getDuration("TEST_TIMEOUT", "3s"); got != 3*time.Second {
		t.Fatalf("getDuration = %v, want 3s", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "FEED_HOST", "MAX_RESULTS", "PUBLISHER_BACKEND", "AMQP_EXCHANGE", "AMQP_QUEUE", "AMQP_ROUTING_KEY"} {
		t.Setenv(k, "")
	}
	_ = os.Unsetenv("REFRESH_CRON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "9000" {
		t.Fatalf("AppPort = %q", cfg.AppPort)
	}
	if cfg.FeedHost != "https://news.google.com" || cfg.MaxResults != 10 {
		t.Fatalf("feed defaults wrong: %+v", cfg)
	}
	if cfg.RefreshCron != "0 */6 * * *" {
		t.Fatalf("RefreshCron = %q", cfg.RefreshCron)
	}
	p := cfg.Publisher
	if p.Backend != BackendAMQP || p.Exchange != "my_exchange" || p.Queue != "my_queue" || p.RoutingKey != "my_routing_key" {
		t.Fatalf("publisher defaults wrong: %+v", p)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("FEED_HOST", "http://feed.local/")
	t.Setenv("MAX_RESULTS", "5")
	t.Setenv("REFRESH_CRON", "")
	t.Setenv("PUBLISHER_BACKEND", "Kafka")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9093 ,")
	t.Setenv("PUBLISH_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "1234" || cfg.FeedHost != "http://feed.local" || cfg.MaxResults != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RefreshCron != "" {
		t.Fatalf("empty REFRESH_CRON should disable refresh, got %q", cfg.RefreshCron)
	}
	if cfg.Publisher.Backend != BackendKafka || len(cfg.Publisher.KafkaBrokers) != 2 || cfg.Publisher.KafkaBrokers[1] != "b:9093" {
		t.Fatalf("kafka settings wrong: %+v", cfg.Publisher)
	}
	if cfg.Publisher.Timeout != 2*time.Second {
		t.Fatalf("Publisher.Timeout = %v", cfg.Publisher.Timeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"MAX_RESULTS":       "0",
		"PUBLISHER_BACKEND": "smtp",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}
