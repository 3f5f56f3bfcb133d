package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, cfg.AuditEnabled)
	assert.False(t, cfg.AuditReads)
	assert.Equal(t, int64(10<<20), cfg.AuditMaxBody)
	assert.Equal(t, "ledger.audit.changes", cfg.KafkaTopic)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"LEDGER_ADDR":          ":9090",
		"DATABASE_URL":         "postgres://ledger@db/ledger",
		"AUDIT_READS":          "true",
		"AUDIT_MAX_BODY_BYTES": "1024",
		"KAFKA_BROKERS":        "kafka-1:9092, kafka-2:9092",
		"SHUTDOWN_TIMEOUT":     "30s",
		"LOG_LEVEL":            "DEBUG",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, cfg.DatabaseURL, cfg.AuditDatabase, "audit store defaults to the record database")
	assert.True(t, cfg.AuditReads)
	assert.Equal(t, int64(1024), cfg.AuditMaxBody)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"bad bool":      {"AUDIT_ENABLED": "maybe"},
		"bad duration":  {"TX_TIMEOUT": "soon"},
		"zero body cap": {"AUDIT_MAX_BODY_BYTES": "0"},
		"bad broker":    {"KAFKA_BROKERS": "not a broker"},
		"short jwt key": {"JWT_SIGNING_KEY": "short"},
		"bad log level": {"LOG_LEVEL": "loud"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(env(values))
			assert.Error(t, err)
		})
	}
}
