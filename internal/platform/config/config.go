// Package config layers runtime configuration from defaults, an optional
// .env file, and environment variables. Explicit maps passed by tests win
// over the process environment, which wins over the .env file.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultTaxRate              = 0.21
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultOrderPlacedTopic     = "order-placed"
	defaultOrdersListLimit      = 20
	defaultShippingFreeCountry  = "LT"
	defaultShippingFreeMinCents = 5000
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Tax         TaxConfig
	Shipping    ShippingConfig
	Orders      OrdersConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig names the Firestore project and optional emulator.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig configures the order event topic.
type PubSubConfig struct {
	ProjectID        string
	OrderPlacedTopic string
}

// TaxConfig carries the injected VAT rate. Prices are tax inclusive; the
// rate only derives the informational net/tax split.
type TaxConfig struct {
	Rate float64
}

// ShippingConfig overrides catalog rates in EUR cents. Zero values keep
// the deployed defaults.
type ShippingConfig struct {
	BalticRateCents        int64
	InternationalRateCents int64
	OverseasRateCents      int64
	FreeThresholdCents     int64
	FreeShippingCountry    string
}

// OrdersConfig tunes the order history surface.
type OrdersConfig struct {
	ListLimit int
}

// IdempotencyConfig controls the idempotency middleware.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// ValidationError reports the invalid fields found during Load.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// Option customises Load.
type Option func(*loaderOptions)

// WithEnvFile overrides the .env path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies explicit values that take precedence over the
// process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores os.LookupEnv, for hermetic tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// source resolves keys with the documented precedence.
type source struct {
	explicit  map[string]string
	dotenv    map[string]string
	systemEnv bool
}

func (s source) get(key string) (string, bool) {
	if v, ok := s.explicit[key]; ok {
		return v, true
	}
	if s.systemEnv {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
	}
	v, ok := s.dotenv[key]
	return v, ok
}

func (s source) str(key, fallback string) string {
	if v, ok := s.get(key); ok && v != "" {
		return v
	}
	return fallback
}

func (s source) duration(key string, fallback time.Duration) time.Duration {
	if v, ok := s.get(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func (s source) integer(key string, fallback int) int {
	if v, ok := s.get(key); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// cents rejects negative amounts; a negative override falls back.
func (s source) cents(key string, fallback int64) int64 {
	if v, ok := s.get(key); ok && v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func (s source) float(key string, fallback float64) float64 {
	if v, ok := s.get(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// Load assembles and validates the configuration.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	src := source{explicit: options.envMap, dotenv: dotenv, systemEnv: options.useSystemEnv}

	cfg := Config{
		Server: ServerConfig{
			Port:         src.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  src.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: src.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  src.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    src.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: src.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:        src.str("API_PUBSUB_PROJECT_ID", ""),
			OrderPlacedTopic: src.str("API_PUBSUB_ORDER_PLACED_TOPIC", defaultOrderPlacedTopic),
		},
		Tax: TaxConfig{
			Rate: src.float("API_TAX_RATE", defaultTaxRate),
		},
		Shipping: ShippingConfig{
			BalticRateCents:        src.cents("API_SHIPPING_BALTIC_RATE_CENTS", 0),
			InternationalRateCents: src.cents("API_SHIPPING_INTERNATIONAL_RATE_CENTS", 0),
			OverseasRateCents:      src.cents("API_SHIPPING_OVERSEAS_RATE_CENTS", 0),
			FreeThresholdCents:     src.cents("API_SHIPPING_FREE_THRESHOLD_CENTS", defaultShippingFreeMinCents),
			FreeShippingCountry:    src.str("API_SHIPPING_FREE_COUNTRY", defaultShippingFreeCountry),
		},
		Orders: OrdersConfig{
			ListLimit: src.integer("API_ORDERS_LIST_LIMIT", defaultOrdersListLimit),
		},
		Idempotency: IdempotencyConfig{
			Header: src.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    src.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
	}

	// Events publish to the same project as the database unless told otherwise.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if invalid := validate(cfg); len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

func validate(cfg Config) []string {
	var invalid []string
	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Tax.Rate < 0 || cfg.Tax.Rate >= 1 {
		invalid = append(invalid, "Tax.Rate")
	}
	if cfg.Orders.ListLimit <= 0 {
		invalid = append(invalid, "Orders.ListLimit")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	return invalid
}

// readDotEnv parses KEY=VALUE lines, tolerating comments, blank lines,
// "export " prefixes, and single or double quotes. Malformed lines are
// skipped rather than rejected.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if key, value, ok := parseEnvLine(scanner.Text()); ok {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}

func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	value = strings.Trim(strings.TrimSpace(value), "\"'")
	return key, value, true
}
