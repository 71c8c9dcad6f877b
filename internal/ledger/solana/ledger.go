// Package solana is the ledger adapter for a Solana cluster. It builds and
// submits sign_consent transactions over JSON-RPC, waits for the configured
// commitment, and decodes ConsentRecord accounts.
package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/ports"
	"pharmatrace/pkg/platform/circuit"
	"pharmatrace/pkg/platform/sentinel"
)

// Commitment levels, weakest first.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

var commitmentRank = map[string]int{
	CommitmentProcessed: 0,
	CommitmentConfirmed: 1,
	CommitmentFinalized: 2,
}

// ErrBlockhashExpired means the transaction was not seen before its
// blockhash aged out. It may still never land; it was not retracted.
var ErrBlockhashExpired = errors.New("transaction expired: block height exceeded")

// TxFailedError is a transaction that landed with an error.
type TxFailedError struct {
	Signature models.TxID
	Err       json.RawMessage
	Logs      []string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, string(e.Err))
}

func (e *TxFailedError) ProgramLogs() []string { return e.Logs }

// ProgramFailed reports whether an instruction, rather than the runtime,
// rejected the transaction.
func (e *TxFailedError) ProgramFailed() bool {
	var status map[string]json.RawMessage
	if err := json.Unmarshal(e.Err, &status); err != nil {
		return false
	}
	_, ok := status["InstructionError"]
	return ok
}

type Config struct {
	Endpoint         string
	FallbackEndpoint string
	Commitment       string
	PollInterval     time.Duration
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// Ledger implements ports.Ledger against a Solana JSON-RPC endpoint.
type Ledger struct {
	rpc          *rpcClient
	commitment   string
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ ports.Ledger = (*Ledger)(nil)

func New(cfg Config) (*Ledger, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("solana ledger: endpoint is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentProcessed
	}
	if _, ok := commitmentRank[cfg.Commitment]; !ok {
		return nil, fmt.Errorf("solana ledger: unknown commitment %q", cfg.Commitment)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{
		rpc: &rpcClient{
			primary:  cfg.Endpoint,
			fallback: cfg.FallbackEndpoint,
			http:     cfg.HTTPClient,
			breaker:  circuit.New("solana-rpc", circuit.WithFailureThreshold(3)),
			logger:   cfg.Logger,
		},
		commitment:   cfg.Commitment,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

type contextual[T any] struct {
	Value T `json:"value"`
}

type latestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

type accountInfo struct {
	Data  []string `json:"data"`
	Owner string   `json:"owner"`
}

// SubmitCommit signs and sends the sign_consent transaction and blocks until
// it reaches the configured commitment, fails, or ctx ends. Cancelling ctx
// stops the wait; it does not retract a sent transaction.
func (l *Ledger) SubmitCommit(ctx context.Context, programID models.PublicKey, req models.CommitRequest, signer ports.Wallet) (models.TxID, error) {
	var bh contextual[latestBlockhash]
	if err := l.rpc.call(ctx, "getLatestBlockhash", &bh, map[string]any{"commitment": l.commitment}); err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}
	blockhash, err := models.ParsePublicKey(bh.Value.Blockhash)
	if err != nil {
		return "", fmt.Errorf("parse blockhash: %w", err)
	}

	msg := SignConsentMessage(programID, req, blockhash)
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	raw, err := EncodeTransaction(msg, sig)
	if err != nil {
		return "", err
	}

	var sent string
	err = l.rpc.call(ctx, "sendTransaction", &sent,
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": l.commitment,
		},
	)
	if err != nil {
		return "", err
	}
	tx := models.TxID(sent)
	if tx == "" {
		tx = models.TxID(base58.Encode(sig))
	}
	l.logger.DebugContext(ctx, "transaction sent", "signature", tx.String())

	if err := l.awaitCommitment(ctx, tx, bh.Value.LastValidBlockHeight); err != nil {
		return "", err
	}
	return tx, nil
}

func (l *Ledger) awaitCommitment(ctx context.Context, tx models.TxID, lastValid uint64) error {
	want := commitmentRank[l.commitment]
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		var statuses contextual[[]*signatureStatus]
		if err := l.rpc.call(ctx, "getSignatureStatuses", &statuses, []string{tx.String()}); err != nil {
			return fmt.Errorf("get signature status: %w", err)
		}
		if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if len(st.Err) > 0 && string(st.Err) != "null" {
				failed := &TxFailedError{Signature: tx, Err: st.Err}
				failed.Logs = l.transactionLogs(ctx, tx)
				return failed
			}
			if rank, ok := commitmentRank[st.ConfirmationStatus]; ok && rank >= want {
				return nil
			}
		} else if lastValid > 0 {
			var height uint64
			if err := l.rpc.call(ctx, "getBlockHeight", &height, map[string]any{"commitment": l.commitment}); err == nil && height > lastValid {
				return fmt.Errorf("%w: %s", ErrBlockhashExpired, tx)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type transactionMeta struct {
	Meta *struct {
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}

// logFetchAttempts bounds how often a failed transaction is looked up while
// the node has not indexed it yet.
const logFetchAttempts = 3

// transactionLogs returns the program logs of a landed transaction, or nil
// when the node cannot serve them. getTransaction does not accept processed.
func (l *Ledger) transactionLogs(ctx context.Context, tx models.TxID) []string {
	commitment := l.commitment
	if commitment == CommitmentProcessed {
		commitment = CommitmentConfirmed
	}
	for attempt := 1; ; attempt++ {
		var got *transactionMeta
		err := l.rpc.call(ctx, "getTransaction", &got, tx.String(), map[string]any{
			"encoding":                       "json",
			"commitment":                     commitment,
			"maxSupportedTransactionVersion": 0,
		})
		if err == nil && got != nil && got.Meta != nil {
			return got.Meta.LogMessages
		}
		if attempt == logFetchAttempts {
			l.logger.WarnContext(ctx, "program logs unavailable for failed transaction",
				"signature", tx.String(), "error", err)
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.pollInterval):
		}
	}
}

// FetchAttestation reads and decodes the ConsentRecord at address. A missing
// account, or one owned by another program, is sentinel.ErrNotFound.
func (l *Ledger) FetchAttestation(ctx context.Context, programID, address models.PublicKey) (models.Attestation, error) {
	var info contextual[*accountInfo]
	err := l.rpc.call(ctx, "getAccountInfo", &info, address.String(), map[string]any{
		"encoding":   "base64",
		"commitment": l.commitment,
	})
	if err != nil {
		return models.Attestation{}, fmt.Errorf("get account info: %w", err)
	}
	if info.Value == nil || info.Value.Owner != programID.String() {
		return models.Attestation{}, fmt.Errorf("account %s: %w", address, sentinel.ErrNotFound)
	}
	if len(info.Value.Data) == 0 {
		return models.Attestation{}, fmt.Errorf("account %s: empty data", address)
	}
	data, err := base64.StdEncoding.DecodeString(info.Value.Data[0])
	if err != nil {
		return models.Attestation{}, fmt.Errorf("decode account %s: %w", address, err)
	}
	return DecodeConsentRecord(data)
}

// GetBalance returns owner's lamports at the configured commitment.
func (l *Ledger) GetBalance(ctx context.Context, owner models.PublicKey) (uint64, error) {
	var bal contextual[uint64]
	if err := l.rpc.call(ctx, "getBalance", &bal, owner.String(), map[string]any{"commitment": l.commitment}); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal.Value, nil
}
