package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "creditflow/pkg/domain-errors"
)

// Config is built once in main and handed to constructors explicitly.
type Config struct {
	Server            Server
	Database          DatabaseConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Advisor           AdvisorConfig
	Pipeline          PipelineConfig
	Auth              AuthConfig
	SeedRulesPath     string
	SeedCustomers     bool
	SeedCustomersPath string
	LogLevel          string
	LogFormat         string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures PostgreSQL. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL            string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

// RedisConfig configures the fact cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	FactTTL      time.Duration
}

// KafkaConfig configures audit fan-out. No brokers disables publishing.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// AdvisorConfig configures the automated decision advisor. When Endpoint is
// empty the deterministic heuristic advisor is used.
type AdvisorConfig struct {
	Enabled          bool
	Endpoint         string
	APIKey           string
	Model            string
	Timeout          time.Duration
	MaxRetries       int
	FailureThreshold int
	Temperature      float32
}

// PipelineConfig holds the mandatory thresholds and stage bounds.
type PipelineConfig struct {
	MinimumAge           int
	MinimumScore         int
	RuleLoadTimeout      time.Duration
	FactTimeout          time.Duration
	MinAdvisorConfidence float64
}

// AuthConfig configures reviewer token validation.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Server: Server{
			Addr:            e.str("CREDITFLOW_ADDR", ":8080"),
			ShutdownTimeout: e.duration("CREDITFLOW_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:            e.str("DATABASE_URL", ""),
			MaxOpenConns:   e.int("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:   e.int("DATABASE_MAX_IDLE_CONNS", 5),
			MigrateOnStart: e.bool("DATABASE_MIGRATE_ON_START", true),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			FactTTL:      e.duration("REDIS_FACT_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:    e.list("KAFKA_BROKERS"),
			AuditTopic: e.str("KAFKA_AUDIT_TOPIC", "creditflow.audit"),
		},
		Advisor: AdvisorConfig{
			Enabled:          e.bool("ADVISOR_ENABLED", true),
			Endpoint:         e.str("ADVISOR_ENDPOINT", ""),
			APIKey:           e.str("ADVISOR_API_KEY", ""),
			Model:            e.str("ADVISOR_MODEL", "gpt-4o-mini"),
			Timeout:          e.duration("ADVISOR_TIMEOUT", 10*time.Second),
			MaxRetries:       e.int("ADVISOR_MAX_RETRIES", 2),
			FailureThreshold: e.int("ADVISOR_FAILURE_THRESHOLD", 5),
			Temperature:      float32(e.float("ADVISOR_TEMPERATURE", 0.1)),
		},
		Pipeline: PipelineConfig{
			MinimumAge:           e.int("PIPELINE_MINIMUM_AGE", 18),
			MinimumScore:         e.int("PIPELINE_MINIMUM_SCORE", 500),
			RuleLoadTimeout:      e.duration("PIPELINE_RULE_LOAD_TIMEOUT", 3*time.Second),
			FactTimeout:          e.duration("PIPELINE_FACT_TIMEOUT", 5*time.Second),
			MinAdvisorConfidence: e.float("PIPELINE_MIN_ADVISOR_CONFIDENCE", 0),
		},
		Auth: AuthConfig{
			JWTSigningKey: e.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        e.str("JWT_ISSUER", "creditflow"),
			Audience:      e.str("JWT_AUDIENCE", "creditflow-admin"),
		},
		SeedRulesPath:     e.str("SEED_RULES_PATH", ""),
		SeedCustomers:     e.bool("SEED_CUSTOMERS", true),
		SeedCustomersPath: e.str("SEED_CUSTOMERS_PATH", ""),
		LogLevel:          e.str("LOG_LEVEL", "info"),
		LogFormat:         e.str("LOG_FORMAT", "json"),
	}
	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working server.
func (c Config) Validate() error {
	if c.Pipeline.MinimumAge < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "PIPELINE_MINIMUM_AGE must not be negative")
	}
	if c.Pipeline.MinimumScore < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "PIPELINE_MINIMUM_SCORE must not be negative")
	}
	if c.Pipeline.MinAdvisorConfidence < 0 || c.Pipeline.MinAdvisorConfidence > 1 {
		return dErrors.New(dErrors.CodeConfiguration, "PIPELINE_MIN_ADVISOR_CONFIDENCE must be between 0 and 1")
	}
	if c.Advisor.Timeout <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "ADVISOR_TIMEOUT must be positive")
	}
	if c.Advisor.MaxRetries < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "ADVISOR_MAX_RETRIES must not be negative")
	}
	if c.Advisor.Endpoint != "" && c.Advisor.APIKey == "" {
		return dErrors.New(dErrors.CodeConfiguration, "ADVISOR_API_KEY is required when ADVISOR_ENDPOINT is set")
	}
	if c.Auth.JWTSigningKey == "" {
		return dErrors.New(dErrors.CodeConfiguration, "JWT_SIGNING_KEY is required")
	}
	return nil
}

// envReader accumulates the first parse error so FromEnv reads linearly.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) list(key string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *envReader) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = dErrors.Wrap(err, dErrors.CodeConfiguration, fmt.Sprintf("invalid value for %s", key))
	}
}
