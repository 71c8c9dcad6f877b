// Package ports declares the external collaborators the attestation client
// consumes: a wallet that holds the identity and signs, and a ledger that
// accepts commits and serves reads.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/ports-mocks.go -package=mocks Wallet,Ledger

import (
	"context"
	"errors"

	"pharmatrace/internal/consent/models"
)

// ErrUserRejected is returned (wrapped) by wallets when the user declines to
// sign. Its text matches what browser wallets report.
var ErrUserRejected = errors.New("User rejected the request.")

// Wallet supplies the session identity and a signing capability. PublicKey
// reports false while the wallet is disconnected.
type Wallet interface {
	PublicKey() (models.PublicKey, bool)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Ledger is the program endpoint. SubmitCommit blocks until the transaction is
// accepted at the adapter's commitment level; FetchAttestation returns an error
// wrapping sentinel.ErrNotFound when no record exists at address.
type Ledger interface {
	SubmitCommit(ctx context.Context, programID models.PublicKey, req models.CommitRequest, signer Wallet) (models.TxID, error)
	FetchAttestation(ctx context.Context, programID, address models.PublicKey) (models.Attestation, error)
	GetBalance(ctx context.Context, owner models.PublicKey) (uint64, error)
}

// LogCarrier is implemented by ledger errors that carry program log lines.
type LogCarrier interface {
	ProgramLogs() []string
}

// ProgramFailure is implemented by ledger errors for transactions the program
// rejected after landing. It holds even when the logs could not be fetched.
type ProgramFailure interface {
	ProgramFailed() bool
}
