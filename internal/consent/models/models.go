package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// ConsentSeed is the domain tag mixed into every consent address derivation.
// Changing it moves every attestation to a different address.
const ConsentSeed = "consent"

// PublicKeyLength is the width of identities, addresses and program IDs.
const PublicKeyLength = 32

// PublicKey is a 32-byte ledger key. It is used for wallet identities, derived
// consent addresses and the program identifier.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("decode public key %q: want %d bytes, got %d", s, PublicKeyLength, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePublicKey is ParsePublicKey for compile-time constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 form.
func (p PublicKey) String() string { return base58.Encode(p[:]) }

// Bytes returns a copy of the raw key.
func (p PublicKey) Bytes() []byte { return append([]byte(nil), p[:]...) }

// IsZero reports whether the key is all zeroes.
func (p PublicKey) IsZero() bool { return p == PublicKey{} }

func (p PublicKey) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SystemProgramID is the ledger's native account-creation program.
var SystemProgramID = PublicKey{}

// DigestLength is the width of a document digest.
const DigestLength = 32

// Digest is the SHA-256 content commitment of a consent document. The document
// itself is never stored or transmitted past hashing.
type Digest [DigestLength]byte

// Hex returns the lowercase hex form.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

func (d Digest) String() string { return d.Hex() }

func (d Digest) MarshalJSON() ([]byte, error) { return json.Marshal(d.Hex()) }

func (d *Digest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode digest: %w", err)
	}
	if len(raw) != DigestLength {
		return fmt.Errorf("decode digest: want %d bytes, got %d", DigestLength, len(raw))
	}
	copy(d[:], raw)
	return nil
}

// DerivedAddress is a program-derived consent address and the bump that
// pushed it off the curve. Stable for a given (seed, identity, program).
type DerivedAddress struct {
	Address PublicKey `json:"address"`
	Bump    uint8     `json:"bump"`
}

// Attestation is the ledger-resident consent record. The client creates it
// once and never mutates it; Verified is flipped by an external authority.
type Attestation struct {
	Owner    PublicKey `json:"owner"`
	Digest   Digest    `json:"digest"`
	Verified bool      `json:"verified"`
}

// CommitRequest is what SignConsent submits to the ledger.
type CommitRequest struct {
	Address DerivedAddress
	Owner   PublicKey
	Digest  Digest
}

// TxID is a base58 transaction signature.
type TxID string

func (t TxID) String() string { return string(t) }

// ExplorerURL links the transaction on the public block explorer. cluster is
// "devnet", "testnet" or "mainnet-beta"; empty means mainnet.
func (t TxID) ExplorerURL(cluster string) string {
	u := "https://explorer.solana.com/tx/" + string(t)
	if cluster != "" && cluster != "mainnet-beta" {
		u += "?cluster=" + cluster
	}
	return u
}

// SignResult is returned by a successful SignConsent.
type SignResult struct {
	Signature TxID
	Address   DerivedAddress
	Digest    Digest
}

// Lookup is the outcome of VerifyConsent: either Found with an attestation, or
// NotFound. NotFound is an expected result, not an error.
type Lookup struct {
	Identity    PublicKey
	Address     DerivedAddress
	found       bool
	attestation Attestation
}

// Found builds a lookup holding an attestation.
func Found(identity PublicKey, addr DerivedAddress, a Attestation) Lookup {
	return Lookup{Identity: identity, Address: addr, found: true, attestation: a}
}

// NotFound builds an empty lookup.
func NotFound(identity PublicKey, addr DerivedAddress) Lookup {
	return Lookup{Identity: identity, Address: addr}
}

// Found reports whether an attestation exists.
func (l Lookup) Found() bool { return l.found }

// Attestation returns the record and whether it exists.
func (l Lookup) Attestation() (Attestation, bool) { return l.attestation, l.found }

// LamportsPerSOL converts the ledger's native unit to SOL.
const LamportsPerSOL = 1_000_000_000

// LowBalanceLamports is the advisory threshold (0.01 SOL) under which a wallet
// is flagged as likely unable to pay for a commit.
const LowBalanceLamports = LamportsPerSOL / 100

// Balance is the advisory funds check result. Known=false is the "unknown"
// sentinel returned when the session is not ready or the read failed.
type Balance struct {
	Known    bool
	Lamports uint64
	Low      bool
}

// UnknownBalance is the sentinel returned by advisory reads that could not run.
var UnknownBalance = Balance{}

// NewBalance builds a known balance.
func NewBalance(lamports uint64) Balance {
	return Balance{Known: true, Lamports: lamports, Low: lamports < LowBalanceLamports}
}

// SOL renders the balance as a decimal SOL string with nine fractional digits.
func (b Balance) SOL() string {
	if !b.Known {
		return ""
	}
	return fmt.Sprintf("%d.%09d", b.Lamports/LamportsPerSOL, b.Lamports%LamportsPerSOL)
}
