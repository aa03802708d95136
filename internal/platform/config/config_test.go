package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second || cfg.Server.WriteTimeout != 30*time.Second {
		t.Fatalf("unexpected server timeouts %+v", cfg.Server)
	}
	if cfg.Tax.Rate != 0.21 {
		t.Fatalf("tax rate = %v", cfg.Tax.Rate)
	}
	if cfg.Shipping.FreeThresholdCents != 5000 || cfg.Shipping.FreeShippingCountry != "LT" {
		t.Fatalf("unexpected shipping config %+v", cfg.Shipping)
	}
	if cfg.Shipping.BalticRateCents != 0 {
		t.Fatalf("baltic rate default should stay zero, got %d", cfg.Shipping.BalticRateCents)
	}
	if cfg.Orders.ListLimit != 20 {
		t.Fatalf("list limit = %d", cfg.Orders.ListLimit)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency config %+v", cfg.Idempotency)
	}
	if cfg.PubSub.OrderPlacedTopic != "order-placed" {
		t.Fatalf("topic = %q", cfg.PubSub.OrderPlacedTopic)
	}
}

func TestLoad_EnvMapOverrides(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_READ_TIMEOUT":        "5s",
		"API_FIRESTORE_PROJECT_ID":       "ambershop-test",
		"API_TAX_RATE":                   "0.19",
		"API_SHIPPING_BALTIC_RATE_CENTS": "350",
		"API_SHIPPING_FREE_COUNTRY":      "EE",
		"API_ORDERS_LIST_LIMIT":          "50",
		"API_IDEMPOTENCY_HEADER":         "X-Request-Key",
		"API_IDEMPOTENCY_TTL":            "1h",
		"API_PUBSUB_ORDER_PLACED_TOPIC":  "orders-v2",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("server overrides not applied: %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "ambershop-test" {
		t.Fatalf("firestore project = %q", cfg.Firestore.ProjectID)
	}
	if cfg.Tax.Rate != 0.19 {
		t.Fatalf("tax rate = %v", cfg.Tax.Rate)
	}
	if cfg.Shipping.BalticRateCents != 350 || cfg.Shipping.FreeShippingCountry != "EE" {
		t.Fatalf("shipping overrides not applied: %+v", cfg.Shipping)
	}
	if cfg.Orders.ListLimit != 50 {
		t.Fatalf("list limit = %d", cfg.Orders.ListLimit)
	}
	if cfg.Idempotency.Header != "X-Request-Key" || cfg.Idempotency.TTL != time.Hour {
		t.Fatalf("idempotency overrides not applied: %+v", cfg.Idempotency)
	}
	if cfg.PubSub.OrderPlacedTopic != "orders-v2" {
		t.Fatalf("topic = %q", cfg.PubSub.OrderPlacedTopic)
	}
}

func TestLoad_PubSubProjectFallsBackToFirestore(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ambershop-prod",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PubSub.ProjectID != "ambershop-prod" {
		t.Fatalf("pubsub project = %q, want firestore fallback", cfg.PubSub.ProjectID)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_TAX_RATE=\"0.20\"\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("port = %q, want dot-env override", cfg.Server.Port)
	}
	if cfg.Tax.Rate != 0.20 {
		t.Fatalf("tax rate = %v, want quoted dot-env value parsed", cfg.Tax.Rate)
	}
}

func TestLoad_EnvMapBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("API_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{
		"API_SERVER_PORT": "9999",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("port = %q, want explicit map to win", cfg.Server.Port)
	}
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	if _, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env"))); err != nil {
		t.Fatalf("Load returned error for absent env file: %v", err)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_SERVER_READ_TIMEOUT":        "soon",
		"API_SHIPPING_BALTIC_RATE_CENTS": "-100",
		"API_ORDERS_LIST_LIMIT":          "lots",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("read timeout = %v, want fallback", cfg.Server.ReadTimeout)
	}
	if cfg.Shipping.BalticRateCents != 0 {
		t.Fatalf("negative cents accepted: %d", cfg.Shipping.BalticRateCents)
	}
	if cfg.Orders.ListLimit != 20 {
		t.Fatalf("list limit = %d, want fallback", cfg.Orders.ListLimit)
	}
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_TAX_RATE":          "1.5",
		"API_ORDERS_LIST_LIMIT": "-1",
	}))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError got %T", err)
	}
	fields := validation.Fields()
	want := map[string]bool{"Tax.Rate": false, "Orders.ListLimit": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("field %s missing from validation error %v", field, fields)
		}
	}
}
