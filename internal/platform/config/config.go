package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger modes.
const (
	LedgerModeMemory = "memory"
	LedgerModeRPC    = "rpc"
)

// Audit sinks.
const (
	AuditSinkMemory   = "memory"
	AuditSinkPostgres = "postgres"
	AuditSinkKafka    = "kafka"
)

// DefaultProgramID is the devnet deployment of the consent program.
const DefaultProgramID = "5DMXqq7v2gkNSyBQ9P6XMFgUFQNcLdJHdhFi9JEPfcpa"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string

	Ledger  LedgerConfig
	Redis   RedisConfig
	Audit   AuditConfig
	Records RecordsConfig

	// IdempotencyTTL bounds how long a sign response is replayable.
	IdempotencyTTL time.Duration

	// SignRateLimit caps sign requests per subject within SignRateWindow.
	// Zero disables the limit.
	SignRateLimit  int
	SignRateWindow time.Duration
}

// LedgerConfig selects and tunes the ledger adapter.
type LedgerConfig struct {
	Mode               string
	ProgramID          string
	RPCURL             string
	FallbackRPCURL     string
	Commitment         string
	PollInterval       time.Duration
	RPCTimeout         time.Duration
	Cluster            string
	KeypairPath        string
	DevAirdropLamports uint64
}

// RedisConfig configures the shared idempotency store. An empty URL keeps
// idempotency in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Sink        string
	DatabaseURL string
	Brokers     []string
	Topic       string
	Buffer      int

	// OpsSampleRate is the share of read-side events kept, in [0,1].
	// ActionSampleRates overrides it per action.
	OpsSampleRate     float64
	ActionSampleRates map[string]float64
}

// RecordsConfig points at the off-chain records API.
type RecordsConfig struct {
	BaseURL string
	Timeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	rate := func(key string, def float64) float64 {
		v, err := envFloat(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		} else if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s: must be between 0 and 1", key))
		}
		return v
	}
	rateTable := func(key string) map[string]float64 {
		rates, err := envRateTable(key)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return rates
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:          envOr("PHARMATRACE_ADDR", ":8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		JWTSigningKey: jwtSigningKey,
		Ledger: LedgerConfig{
			Mode:               envOr("LEDGER_MODE", LedgerModeMemory),
			ProgramID:          envOr("PROGRAM_ID", DefaultProgramID),
			RPCURL:             envOr("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
			FallbackRPCURL:     os.Getenv("SOLANA_RPC_FALLBACK_URL"),
			Commitment:         envOr("RPC_COMMITMENT", "processed"),
			PollInterval:       dur("CONFIRM_POLL_INTERVAL", 500*time.Millisecond),
			RPCTimeout:         dur("RPC_TIMEOUT", 30*time.Second),
			Cluster:            envOr("SOLANA_CLUSTER", "devnet"),
			KeypairPath:        os.Getenv("WALLET_KEYPAIR_PATH"),
			DevAirdropLamports: uint64(num("DEV_AIRDROP_LAMPORTS", 2_000_000_000)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Sink:        envOr("AUDIT_SINK", AuditSinkMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:       envOr("KAFKA_AUDIT_TOPIC", "consent.audit.v1"),
			Buffer:      num("AUDIT_BUFFER", 256),

			OpsSampleRate:     rate("AUDIT_OPS_SAMPLE_RATE", 1),
			ActionSampleRates: rateTable("AUDIT_ACTION_SAMPLE_RATES"),
		},
		Records: RecordsConfig{
			BaseURL: os.Getenv("RECORDS_API_URL"),
			Timeout: dur("RECORDS_API_TIMEOUT", 10*time.Second),
		},
		IdempotencyTTL: dur("IDEMPOTENCY_TTL", 24*time.Hour),
		SignRateLimit:  num("SIGN_RATE_LIMIT", 30),
		SignRateWindow: dur("SIGN_RATE_WINDOW", time.Minute),
	}

	switch cfg.Ledger.Mode {
	case LedgerModeMemory, LedgerModeRPC:
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_MODE: unknown mode %q", cfg.Ledger.Mode))
	}
	switch cfg.Audit.Sink {
	case AuditSinkMemory:
	case AuditSinkPostgres:
		if cfg.Audit.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL: required when AUDIT_SINK=postgres")
		}
	case AuditSinkKafka:
		if len(cfg.Audit.Brokers) == 0 {
			errs = append(errs, "KAFKA_BROKERS: required when AUDIT_SINK=kafka")
		}
	default:
		errs = append(errs, fmt.Sprintf("AUDIT_SINK: unknown sink %q", cfg.Audit.Sink))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// envRateTable parses "action=rate" pairs separated by commas.
func envRateTable(key string) (map[string]float64, error) {
	rates := make(map[string]float64)
	for _, pair := range splitList(os.Getenv(key)) {
		action, raw, ok := strings.Cut(pair, "=")
		action = strings.TrimSpace(action)
		if !ok || action == "" {
			return rates, fmt.Errorf("%s: expected action=rate, got %q", key, pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return rates, fmt.Errorf("%s: %s: %w", key, action, err)
		}
		if f < 0 || f > 1 {
			return rates, fmt.Errorf("%s: %s: must be between 0 and 1", key, action)
		}
		rates[action] = f
	}
	return rates, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
