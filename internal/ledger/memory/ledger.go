// Package memory is an in-process ledger used by tests and the dev gateway.
// It enforces the same rules the on-chain consent program does: the record
// address must be derived from the signer, a second commit to an occupied
// address fails, and the payer must cover fee plus rent.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/pda"
	"pharmatrace/internal/consent/ports"
	"pharmatrace/internal/wallet"
	"pharmatrace/pkg/platform/sentinel"
)

const (
	// DefaultFeeLamports is charged per accepted commit.
	DefaultFeeLamports uint64 = 5_000
	// DefaultRentLamports funds the new consent account.
	DefaultRentLamports uint64 = 1_447_680
)

// TxError is a rejected transaction. Logs mirror what the program would print.
type TxError struct {
	Message string
	Logs    []string
}

func (e *TxError) Error() string { return e.Message }

// ProgramLogs implements ports.LogCarrier.
func (e *TxError) ProgramLogs() []string { return e.Logs }

type account struct {
	program     models.PublicKey
	attestation models.Attestation
}

// Ledger is safe for concurrent use; commits are serialized so concurrent
// duplicates resolve to exactly one winner.
type Ledger struct {
	mu       sync.Mutex
	accounts map[models.PublicKey]account
	balances map[models.PublicKey]uint64
	fee      uint64
	rent     uint64
	nonce    uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithFees overrides the per-commit fee and rent.
func WithFees(fee, rent uint64) Option {
	return func(l *Ledger) {
		l.fee = fee
		l.rent = rent
	}
}

var _ ports.Ledger = (*Ledger)(nil)

// New returns an empty ledger. Wallets start with zero balance.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[models.PublicKey]account),
		balances: make(map[models.PublicKey]uint64),
		fee:      DefaultFeeLamports,
		rent:     DefaultRentLamports,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Airdrop credits lamports to owner.
func (l *Ledger) Airdrop(owner models.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[owner] += lamports
}

// SetVerified lets the verifying authority flag a record. The attestation
// client never calls this.
func (l *Ledger) SetVerified(address models.PublicKey, verified bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok {
		return fmt.Errorf("account %s: %w", address, sentinel.ErrNotFound)
	}
	acc.attestation.Verified = verified
	l.accounts[address] = acc
	return nil
}

// CommitMessage is the byte string a wallet signs for a commit.
func CommitMessage(programID models.PublicKey, req models.CommitRequest, nonce uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString("sign_consent")
	buf.Write(programID[:])
	buf.Write(req.Address.Address[:])
	buf.Write(req.Owner[:])
	buf.Write(req.Digest[:])
	for i := 0; i < 8; i++ {
		buf.WriteByte(byte(nonce >> (8 * i)))
	}
	return buf.Bytes()
}

// SubmitCommit creates the consent account at req.Address.
func (l *Ledger) SubmitCommit(ctx context.Context, programID models.PublicKey, req models.CommitRequest, signer ports.Wallet) (models.TxID, error) {
	l.mu.Lock()
	l.nonce++
	nonce := l.nonce
	l.mu.Unlock()

	msg := CommitMessage(programID, req, nonce)
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if !wallet.Verify(req.Owner, msg, sig) {
		return "", &TxError{Message: "Transaction signature verification failure"}
	}

	expected, err := pda.DeriveConsentAddress(req.Owner, programID)
	if err != nil {
		return "", err
	}
	if expected.Address != req.Address.Address {
		return "", &TxError{
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x7d6",
			Logs: []string{
				fmt.Sprintf("Program %s invoke [1]", programID),
				"Program log: Instruction: SignConsent",
				"Program log: AnchorError caused by account: consent_record. Error Code: ConstraintSeeds. Error Number: 2006. Error Message: A seeds constraint was violated.",
				fmt.Sprintf("Program %s failed: custom program error: 0x7d6", programID),
			},
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.accounts[req.Address.Address]; taken {
		return "", &TxError{
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x0",
			Logs: []string{
				fmt.Sprintf("Program %s invoke [1]", programID),
				"Program log: Instruction: SignConsent",
				fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", req.Address.Address),
				fmt.Sprintf("Program %s failed: custom program error: 0x0", models.SystemProgramID),
				fmt.Sprintf("Program %s failed: custom program error: 0x0", programID),
			},
		}
	}

	if cost := l.fee + l.rent; l.balances[req.Owner] < cost {
		return "", &TxError{
			Message: fmt.Sprintf("Transaction simulation failed: insufficient funds for fee and rent (need %d lamports, have %d)", cost, l.balances[req.Owner]),
		}
	}

	l.balances[req.Owner] -= l.fee + l.rent
	l.accounts[req.Address.Address] = account{
		program: programID,
		attestation: models.Attestation{
			Owner:  req.Owner,
			Digest: req.Digest,
		},
	}
	return models.TxID(base58.Encode(sig)), nil
}

// FetchAttestation returns the record at address owned by programID.
func (l *Ledger) FetchAttestation(ctx context.Context, programID, address models.PublicKey) (models.Attestation, error) {
	if err := ctx.Err(); err != nil {
		return models.Attestation{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok || acc.program != programID {
		return models.Attestation{}, fmt.Errorf("account %s: %w", address, sentinel.ErrNotFound)
	}
	return acc.attestation, nil
}

// GetBalance returns owner's lamports.
func (l *Ledger) GetBalance(ctx context.Context, owner models.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner], nil
}
