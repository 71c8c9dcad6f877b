package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicKey(t *testing.T) {
	t.Run("round trips base58", func(t *testing.T) {
		const program = "5DMXqq7v2gkNSyBQ9P6XMFgUFQNcLdJHdhFi9JEPfcpa"
		pk, err := ParsePublicKey(program)
		require.NoError(t, err)
		assert.Equal(t, program, pk.String())
	})

	t.Run("all zero key is the system program", func(t *testing.T) {
		pk, err := ParsePublicKey("11111111111111111111111111111111")
		require.NoError(t, err)
		assert.True(t, pk.IsZero())
		assert.Equal(t, SystemProgramID, pk)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParsePublicKey("abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want 32 bytes")
	})

	t.Run("rejects characters outside the alphabet", func(t *testing.T) {
		_, err := ParsePublicKey("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl")
		require.Error(t, err)
	})
}

func TestLookupVariants(t *testing.T) {
	id := PublicKey{1}
	addr := DerivedAddress{Address: PublicKey{2}, Bump: 254}

	missing := NotFound(id, addr)
	assert.False(t, missing.Found())
	_, ok := missing.Attestation()
	assert.False(t, ok)

	att := Attestation{Owner: id, Digest: Digest{9}}
	found := Found(id, addr, att)
	assert.True(t, found.Found())
	got, ok := found.Attestation()
	assert.True(t, ok)
	assert.Equal(t, att, got)
}

func TestBalance(t *testing.T) {
	assert.Equal(t, "", UnknownBalance.SOL())
	assert.False(t, UnknownBalance.Known)

	b := NewBalance(1_500_000_000)
	assert.Equal(t, "1.500000000", b.SOL())
	assert.False(t, b.Low)

	low := NewBalance(9_999_999)
	assert.Equal(t, "0.009999999", low.SOL())
	assert.True(t, low.Low)
}

func TestAttestationJSON(t *testing.T) {
	att := Attestation{Owner: PublicKey{}, Digest: Digest{0xab}, Verified: true}
	raw, err := json.Marshal(att)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"owner": "11111111111111111111111111111111",
		"digest": "ab00000000000000000000000000000000000000000000000000000000000000",
		"verified": true
	}`, string(raw))
}

func TestExplorerURL(t *testing.T) {
	tx := TxID("5abc")
	assert.Equal(t, "https://explorer.solana.com/tx/5abc?cluster=devnet", tx.ExplorerURL("devnet"))
	assert.Equal(t, "https://explorer.solana.com/tx/5abc", tx.ExplorerURL("mainnet-beta"))
	assert.Equal(t, "https://explorer.solana.com/tx/5abc", tx.ExplorerURL(""))
}
