package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PHARMATRACE_ADDR", "LEDGER_MODE", "AUDIT_SINK", "RPC_COMMITMENT", "KAFKA_BROKERS", "REDIS_URL", "JWT_SIGNING_KEY", "AUDIT_OPS_SAMPLE_RATE", "AUDIT_ACTION_SAMPLE_RATES", "SIGN_RATE_LIMIT", "SIGN_RATE_WINDOW"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, LedgerModeMemory, cfg.Ledger.Mode)
	assert.Equal(t, DefaultProgramID, cfg.Ledger.ProgramID)
	assert.Equal(t, "processed", cfg.Ledger.Commitment)
	assert.Equal(t, 500*time.Millisecond, cfg.Ledger.PollInterval)
	assert.Equal(t, AuditSinkMemory, cfg.Audit.Sink)
	assert.Equal(t, "consent.audit.v1", cfg.Audit.Topic)
	assert.Equal(t, 1.0, cfg.Audit.OpsSampleRate)
	assert.Empty(t, cfg.Audit.ActionSampleRates)
	assert.Equal(t, 30, cfg.SignRateLimit)
	assert.Equal(t, time.Minute, cfg.SignRateWindow)
	assert.Empty(t, cfg.Redis.URL)
	assert.NotEmpty(t, cfg.JWTSigningKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEDGER_MODE", "rpc")
	t.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
	t.Setenv("RPC_COMMITMENT", "finalized")
	t.Setenv("CONFIRM_POLL_INTERVAL", "250ms")
	t.Setenv("AUDIT_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("REDIS_POOL_SIZE", "32")
	t.Setenv("AUDIT_ACTION_SAMPLE_RATES", "consent_verified=0.1, consent_not_found = 0.5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, LedgerModeRPC, cfg.Ledger.Mode)
	assert.Equal(t, "http://localhost:8899", cfg.Ledger.RPCURL)
	assert.Equal(t, "finalized", cfg.Ledger.Commitment)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.PollInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
	assert.Equal(t, map[string]float64{"consent_verified": 0.1, "consent_not_found": 0.5}, cfg.Audit.ActionSampleRates)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown ledger mode", map[string]string{"LEDGER_MODE": "mainframe"}, "LEDGER_MODE"},
		{"unknown audit sink", map[string]string{"AUDIT_SINK": "s3"}, "AUDIT_SINK"},
		{"postgres without url", map[string]string{"AUDIT_SINK": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"kafka without brokers", map[string]string{"AUDIT_SINK": "kafka", "KAFKA_BROKERS": ""}, "KAFKA_BROKERS"},
		{"bad duration", map[string]string{"RPC_TIMEOUT": "soon"}, "RPC_TIMEOUT"},
		{"bad integer", map[string]string{"REDIS_POOL_SIZE": "many"}, "REDIS_POOL_SIZE"},
		{"sample rate out of range", map[string]string{"AUDIT_OPS_SAMPLE_RATE": "1.5"}, "AUDIT_OPS_SAMPLE_RATE"},
		{"sample rate not a number", map[string]string{"AUDIT_OPS_SAMPLE_RATE": "half"}, "AUDIT_OPS_SAMPLE_RATE"},
		{"action rate without value", map[string]string{"AUDIT_ACTION_SAMPLE_RATES": "consent_verified"}, "AUDIT_ACTION_SAMPLE_RATES"},
		{"action rate out of range", map[string]string{"AUDIT_ACTION_SAMPLE_RATES": "consent_verified=2"}, "AUDIT_ACTION_SAMPLE_RATES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
