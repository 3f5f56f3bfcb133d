package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr            string `validate:"required"`
	DatabaseURL     string
	AuditDatabase   string
	AuditEnabled    bool
	AuditReads      bool
	AuditMaxBody    int64         `validate:"gt=0"`
	KafkaBrokers    []string      `validate:"dive,hostname_port"`
	KafkaTopic      string        `validate:"required_with=KafkaBrokers"`
	JWTSigningKey   string        `validate:"omitempty,min=16"`
	TxTimeout       time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	LogFormat       string        `validate:"oneof=json text"`
}

const (
	defaultAddr         = ":8080"
	defaultKafkaTopic   = "ledger.audit.changes"
	defaultMaxBodyBytes = 10 << 20
)

var validate = validator.New()

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present;
// real environment variables win over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()
	return Load(os.Getenv)
}

// Load builds a Server config from getenv and validates it.
func Load(getenv func(string) string) (Server, error) {
	cfg := Server{
		Addr:          withDefault(getenv("LEDGER_ADDR"), defaultAddr),
		DatabaseURL:   getenv("DATABASE_URL"),
		AuditDatabase: getenv("AUDIT_DATABASE_URL"),
		KafkaTopic:    withDefault(getenv("KAFKA_AUDIT_TOPIC"), defaultKafkaTopic),
		JWTSigningKey: getenv("JWT_SIGNING_KEY"),
		LogLevel:      strings.ToLower(withDefault(getenv("LOG_LEVEL"), "info")),
		LogFormat:     strings.ToLower(withDefault(getenv("LOG_FORMAT"), "json")),
	}
	if cfg.AuditDatabase == "" {
		cfg.AuditDatabase = cfg.DatabaseURL
	}
	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.AuditEnabled, err = parseBool(getenv, "AUDIT_ENABLED", true); err != nil {
		return Server{}, err
	}
	if cfg.AuditReads, err = parseBool(getenv, "AUDIT_READS", false); err != nil {
		return Server{}, err
	}
	if cfg.AuditMaxBody, err = parseInt(getenv, "AUDIT_MAX_BODY_BYTES", defaultMaxBodyBytes); err != nil {
		return Server{}, err
	}
	if cfg.TxTimeout, err = parseDuration(getenv, "TX_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(getenv, "SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}

	if err := validate.Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseBool(getenv func(string) string, key string, def bool) (bool, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseInt(getenv func(string) string, key string, def int64) (int64, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
