// Package wallet provides a file-backed Ed25519 keypair wallet for the CLI, the
// dev gateway and tests. Browser and hardware wallets implement the same
// ports.Wallet interface elsewhere.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/ports"
)

// Approver is asked before every signature. Returning false rejects the
// signature with ports.ErrUserRejected.
type Approver func(ctx context.Context, message []byte) (bool, error)

// Option configures a Keypair.
type Option func(*Keypair)

// WithApprover installs an interactive or policy approval hook.
func WithApprover(a Approver) Option {
	return func(k *Keypair) { k.approver = a }
}

// Keypair is a connected-by-default software wallet.
type Keypair struct {
	priv      ed25519.PrivateKey
	pub       models.PublicKey
	connected atomic.Bool
	approver  Approver
}

var _ ports.Wallet = (*Keypair)(nil)

// Generate creates a fresh random keypair.
func Generate(opts ...Option) (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return newKeypair(priv, opts...), nil
}

// FromSeed builds a keypair deterministically from a 32-byte seed.
func FromSeed(seed []byte, opts ...Option) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keypair seed: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return newKeypair(ed25519.NewKeyFromSeed(seed), opts...), nil
}

// FromPrivateKey builds a keypair from the 64-byte seed||public form used by
// Solana CLI keypair files.
func FromPrivateKey(raw []byte, opts ...Option) (*Keypair, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: want %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("keypair: public half does not match seed")
	}
	return newKeypair(priv, opts...), nil
}

// LoadFile reads a keypair file: a JSON array of 64 byte values.
func LoadFile(path string, opts ...Option) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	key := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair %s: byte %d out of range", path, i)
		}
		key[i] = byte(v)
	}
	return FromPrivateKey(key, opts...)
}

// SaveFile writes the keypair in the JSON array format with 0600 permissions.
func (k *Keypair) SaveFile(path string) error {
	ints := make([]int, len(k.priv))
	for i, b := range k.priv {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write keypair %s: %w", path, err)
	}
	return nil
}

func newKeypair(priv ed25519.PrivateKey, opts ...Option) *Keypair {
	k := &Keypair{priv: priv}
	copy(k.pub[:], priv.Public().(ed25519.PublicKey))
	k.connected.Store(true)
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// PublicKey returns the identity, or false while disconnected.
func (k *Keypair) PublicKey() (models.PublicKey, bool) {
	if !k.connected.Load() {
		return models.PublicKey{}, false
	}
	return k.pub, true
}

// Address returns the identity regardless of connection state.
func (k *Keypair) Address() models.PublicKey { return k.pub }

// Connect makes the identity available to sessions.
func (k *Keypair) Connect() { k.connected.Store(true) }

// Disconnect hides the identity; the next session evaluation sees it.
func (k *Keypair) Disconnect() { k.connected.Store(false) }

// SignMessage signs message after consulting the approver.
func (k *Keypair) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if !k.connected.Load() {
		return nil, fmt.Errorf("wallet not connected")
	}
	if k.approver != nil {
		ok, err := k.approver(ctx, message)
		if err != nil {
			return nil, fmt.Errorf("wallet approval: %w", err)
		}
		if !ok {
			return nil, ports.ErrUserRejected
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(k.priv, message), nil
}

// Verify checks an Ed25519 signature by signer over message.
func Verify(signer models.PublicKey, message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, signature)
}
