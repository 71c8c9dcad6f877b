package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/ports"
	"pharmatrace/internal/consent/session"
	"pharmatrace/internal/consent/store/idempotency"
	"pharmatrace/internal/ledger/memory"
	"pharmatrace/internal/ledger/solana"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/platform/postgres"
	"pharmatrace/internal/platform/ratelimit"
	"pharmatrace/internal/platform/redis"
	"pharmatrace/internal/wallet"
	"pharmatrace/pkg/platform/audit"
	auditkafka "pharmatrace/pkg/platform/audit/store/kafka"
	auditmemory "pharmatrace/pkg/platform/audit/store/memory"
	auditpostgres "pharmatrace/pkg/platform/audit/store/postgres"
)

// infra owns every connection the gateway opens.
type infra struct {
	session     session.Session
	idempotency idempotency.Store
	rateLimits  ratelimit.Store
	auditStore  audit.Store

	redis  *redis.Client
	pool   *pgxpool.Pool
	kafka  *auditkafka.Store
	logger *slog.Logger
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{logger: log}
	ok := false
	defer func() {
		if !ok {
			in.Close()
		}
	}()

	programID, err := models.ParsePublicKey(cfg.Ledger.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	kp, err := loadWallet(cfg.Ledger, log)
	if err != nil {
		return nil, err
	}
	ledger, err := buildLedger(cfg.Ledger, kp, log)
	if err != nil {
		return nil, err
	}
	in.session = session.Session{Wallet: kp, Program: &session.Program{ID: programID, Ledger: ledger}}

	in.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if in.redis != nil {
		in.idempotency = idempotency.NewRedisStore(in.redis.Client)
		in.rateLimits = ratelimit.NewRedisStore(in.redis.Client)
	} else {
		in.idempotency = idempotency.NewInMemoryStore()
		in.rateLimits = ratelimit.NewInMemoryStore()
	}

	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		in.pool, err = postgres.Connect(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := auditpostgres.New(in.pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate audit schema: %w", err)
		}
		in.auditStore = store
	case config.AuditSinkKafka:
		in.kafka, err = auditkafka.New(cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return nil, err
		}
		if err := in.kafka.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("audit topic not ensured; relying on broker auto-create", "error", err)
		}
		in.auditStore = in.kafka
	default:
		in.auditStore = auditmemory.NewInMemoryStore()
	}

	ok = true
	return in, nil
}

func loadWallet(cfg config.LedgerConfig, log *slog.Logger) (*wallet.Keypair, error) {
	if cfg.KeypairPath != "" {
		kp, err := wallet.LoadFile(cfg.KeypairPath)
		if err != nil {
			return nil, err
		}
		return kp, nil
	}
	if cfg.Mode == config.LedgerModeRPC {
		return nil, errors.New("WALLET_KEYPAIR_PATH: required when LEDGER_MODE=rpc")
	}
	kp, err := wallet.Generate()
	if err != nil {
		return nil, err
	}
	log.Warn("using an ephemeral wallet; set WALLET_KEYPAIR_PATH to keep an identity across restarts",
		"wallet", kp.Address().String(),
	)
	return kp, nil
}

func buildLedger(cfg config.LedgerConfig, kp *wallet.Keypair, log *slog.Logger) (ports.Ledger, error) {
	if cfg.Mode == config.LedgerModeRPC {
		return solana.New(solana.Config{
			Endpoint:         cfg.RPCURL,
			FallbackEndpoint: cfg.FallbackRPCURL,
			Commitment:       cfg.Commitment,
			PollInterval:     cfg.PollInterval,
			HTTPClient:       &http.Client{Timeout: cfg.RPCTimeout},
			Logger:           log,
		})
	}
	ledger := memory.New()
	ledger.Airdrop(kp.Address(), cfg.DevAirdropLamports)
	return ledger, nil
}

// Health pings the shared backends.
func (in *infra) Health(ctx context.Context) error {
	if in.redis != nil {
		if err := in.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if in.pool != nil {
		if err := in.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.pool != nil {
		in.pool.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.logger.Warn("redis close", "error", err)
		}
	}
}
