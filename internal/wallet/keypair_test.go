package wallet

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmatrace/internal/consent/ports"
)

func TestKeypair_SignAndVerify(t *testing.T) {
	kp, err := FromSeed(bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)

	msg := []byte("commit")
	sig, err := kp.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, Verify(kp.Address(), msg, sig))
	assert.False(t, Verify(kp.Address(), []byte("other"), sig))
}

func TestKeypair_ConnectionState(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	pk, ok := kp.PublicKey()
	assert.True(t, ok)
	assert.Equal(t, kp.Address(), pk)

	kp.Disconnect()
	_, ok = kp.PublicKey()
	assert.False(t, ok)
	_, err = kp.SignMessage(context.Background(), []byte("x"))
	assert.Error(t, err)

	kp.Connect()
	_, ok = kp.PublicKey()
	assert.True(t, ok)
}

func TestKeypair_Approver(t *testing.T) {
	t.Run("refusal is a user rejection", func(t *testing.T) {
		kp, err := Generate(WithApprover(func(context.Context, []byte) (bool, error) { return false, nil }))
		require.NoError(t, err)
		_, err = kp.SignMessage(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, ports.ErrUserRejected)
	})

	t.Run("approver failure is not a rejection", func(t *testing.T) {
		kp, err := Generate(WithApprover(func(context.Context, []byte) (bool, error) { return false, errors.New("tty closed") }))
		require.NoError(t, err)
		_, err = kp.SignMessage(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ports.ErrUserRejected)
	})
}

func TestKeypair_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "id.json")

	kp, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kp.SaveFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), loaded.Address())
}

func TestLoadFile_Rejects(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong length", func(t *testing.T) {
		path := filepath.Join(dir, "short.json")
		require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("mismatched public half", func(t *testing.T) {
		kp, err := Generate()
		require.NoError(t, err)
		raw := append([]byte(nil), kp.priv...)
		raw[63] ^= 0xff
		_, err = FromPrivateKey(raw)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}
