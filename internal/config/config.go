// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPAddr       = ":8084"
	defaultRedisURL       = "redis://127.0.0.1:6379/0"
	defaultDBDriver       = "sqlite"
	defaultDBDSN          = "pacer.db"
	defaultDefaultPersona = "carlos"
	defaultQueueShards    = 4
	defaultConsumerName   = "pacer-1"
)

type Config struct {
	HTTPAddr       string
	RedisURL       string
	DBDriver       string
	DBDSN          string
	PersonasFile   string
	DefaultPersona string
	ResponderURL   string
	WebhookURLs    []string
	QueueShards    int
	ConsumerName   string
}

func FromEnv() (Config, error) {
	httpAddr := strings.TrimSpace(os.Getenv("PACER_HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	redisURL := strings.TrimSpace(os.Getenv("PACER_REDIS_URL"))
	if redisURL == "" {
		redisURL = defaultRedisURL
	}

	dbDriver := strings.TrimSpace(os.Getenv("PACER_DB_DRIVER"))
	if dbDriver == "" {
		dbDriver = defaultDBDriver
	}

	dbDSN := strings.TrimSpace(os.Getenv("PACER_DB_DSN"))
	if dbDSN == "" {
		dbDSN = defaultDBDSN
	}

	defaultPersona := strings.TrimSpace(os.Getenv("PACER_DEFAULT_PERSONA"))
	if defaultPersona == "" {
		defaultPersona = defaultDefaultPersona
	}

	queueShards := defaultQueueShards
	if raw := strings.TrimSpace(os.Getenv("PACER_QUEUE_SHARDS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("PACER_QUEUE_SHARDS is not a number: %w", err)
		}
		queueShards = parsed
	}

	consumerName := strings.TrimSpace(os.Getenv("PACER_CONSUMER_NAME"))
	if consumerName == "" {
		consumerName = defaultConsumerName
	}

	return Config{
		HTTPAddr:       httpAddr,
		RedisURL:       redisURL,
		DBDriver:       dbDriver,
		DBDSN:          dbDSN,
		PersonasFile:   strings.TrimSpace(os.Getenv("PACER_PERSONAS_FILE")),
		DefaultPersona: defaultPersona,
		ResponderURL:   strings.TrimSpace(os.Getenv("PACER_RESPONDER_URL")),
		WebhookURLs:    splitList(os.Getenv("PACER_WEBHOOK_URLS")),
		QueueShards:    queueShards,
		ConsumerName:   consumerName,
	}, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("PACER_HTTP_ADDR must not be empty")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("PACER_REDIS_URL must not be empty")
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("PACER_DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DefaultPersona) == "" {
		return fmt.Errorf("PACER_DEFAULT_PERSONA must not be empty")
	}
	if c.QueueShards < 1 {
		return fmt.Errorf("PACER_QUEUE_SHARDS must be at least 1, got %d", c.QueueShards)
	}
	if c.ResponderURL != "" {
		if err := validateHTTPURL("PACER_RESPONDER_URL", c.ResponderURL); err != nil {
			return err
		}
	}
	for _, webhook := range c.WebhookURLs {
		if err := validateHTTPURL("PACER_WEBHOOK_URLS", webhook); err != nil {
			return err
		}
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s entry is invalid: %w", name, err)
	}
	if strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("%s entry %q must include scheme and host", name, raw)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
