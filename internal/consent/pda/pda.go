// Package pda derives program addresses: deterministic 32-byte keys that are
// guaranteed not to be valid Ed25519 public keys, so no private key can sign
// for them and only the owning program can write there.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"pharmatrace/internal/consent/models"
)

const (
	// MaxSeeds is the maximum number of seeds, including the bump.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	addressMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength = errors.New("max seed length exceeded")
	// ErrInvalidSeeds means the seeds hash onto the curve and cannot be used.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")
	// ErrAddressDerivationExhausted means every bump in 255..0 produced an
	// on-curve point. Practically unreachable, but never defaulted.
	ErrAddressDerivationExhausted = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress hashes seeds with programID into an address and fails
// with ErrInvalidSeeds if the result lies on the Ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID models.PublicKey) (models.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return models.PublicKey{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLength, len(seeds))
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return models.PublicKey{}, fmt.Errorf("%w: seed of %d bytes", ErrMaxSeedLength, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(addressMarker))

	var addr models.PublicKey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr[:]) {
		return models.PublicKey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address with its bump. The result is a pure function of the inputs.
func FindProgramAddress(seeds [][]byte, programID models.PublicKey) (models.DerivedAddress, error) {
	if len(seeds) >= MaxSeeds {
		return models.DerivedAddress{}, fmt.Errorf("%w: %d seeds leaves no room for the bump", ErrMaxSeedLength, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return models.DerivedAddress{Address: addr, Bump: uint8(b)}, nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return models.DerivedAddress{}, err
		}
	}
	return models.DerivedAddress{}, ErrAddressDerivationExhausted
}

// DeriveConsentAddress derives the consent record address for identity under
// programID using the seeds ["consent", identity].
func DeriveConsentAddress(identity, programID models.PublicKey) (models.DerivedAddress, error) {
	return FindProgramAddress([][]byte{[]byte(models.ConsentSeed), identity[:]}, programID)
}

// IsOnCurve reports whether b decodes to a point on the Ed25519 curve.
// Non-canonical encodings of valid points count as on-curve.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
