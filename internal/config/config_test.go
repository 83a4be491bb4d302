package config_test

import (
	"testing"
	"time"

	"github.com/dukanlabs/checkout-api/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":       "postgres://localhost:5432/checkout",
		"REDIS_URL":          "redis://localhost:6379/0",
		"JWT_SECRET":         "test-secret",
		"GATEWAY_KEY_SECRET": "gw-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected port defaults: %q %q", cfg.Port, cfg.HTTPAddr())
	}
	if cfg.CurrencyCode != "INR" {
		t.Fatalf("currency = %q, want INR", cfg.CurrencyCode)
	}
	if cfg.GatewayProvider != "razorpay" {
		t.Fatalf("gateway provider = %q, want razorpay", cfg.GatewayProvider)
	}
	if cfg.GatewayOrderTTL != 30*time.Minute {
		t.Fatalf("gateway order ttl = %s, want 30m", cfg.GatewayOrderTTL)
	}
	if cfg.SweepInterval != time.Minute || cfg.SweepBatchSize != 100 {
		t.Fatalf("unexpected sweep defaults: %s %d", cfg.SweepInterval, cfg.SweepBatchSize)
	}
	if cfg.WebhookRateLimit != "300-M" {
		t.Fatalf("webhook rate limit = %q, want 300-M", cfg.WebhookRateLimit)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET", "GATEWAY_KEY_SECRET"} {
		env := baseEnv()
		env[missing] = ""
		if _, err := config.LoadForTests(env); err == nil {
			t.Fatalf("expected error when %s is missing", missing)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["GATEWAY_ORDER_TTL"] = "15m"
	env["SWEEP_BATCH_SIZE"] = "25"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"

	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.HTTPAddr())
	}
	if cfg.GatewayOrderTTL != 15*time.Minute {
		t.Fatalf("gateway order ttl = %s, want 15m", cfg.GatewayOrderTTL)
	}
	if cfg.SweepBatchSize != 25 {
		t.Fatalf("sweep batch size = %d, want 25", cfg.SweepBatchSize)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}
