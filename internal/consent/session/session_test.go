package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/ledger/memory"
	"pharmatrace/internal/wallet"
)

func TestSessionState(t *testing.T) {
	kp, err := wallet.Generate()
	require.NoError(t, err)
	program := &Program{ID: models.PublicKey{9}, Ledger: memory.New()}

	t.Run("empty session is not ready", func(t *testing.T) {
		st := Session{}.State()
		assert.False(t, st.IdentityPresent)
		assert.False(t, st.EndpointLoaded)
		assert.False(t, st.Ready())
	})

	t.Run("identity without program", func(t *testing.T) {
		st := Session{Wallet: kp}.State()
		assert.True(t, st.IdentityPresent)
		assert.False(t, st.EndpointLoaded)
		assert.False(t, st.Ready())
	})

	t.Run("program handle without ledger is not loaded", func(t *testing.T) {
		st := Session{Wallet: kp, Program: &Program{ID: program.ID}}.State()
		assert.False(t, st.EndpointLoaded)
	})

	t.Run("both present", func(t *testing.T) {
		s := Session{Wallet: kp, Program: program}
		assert.True(t, s.Ready())
		addr, ok := s.WalletAddress()
		assert.True(t, ok)
		assert.Equal(t, kp.Address().String(), addr)
	})

	t.Run("disconnect is seen on the next evaluation", func(t *testing.T) {
		s := Session{Wallet: kp, Program: program}
		require.True(t, s.Ready())

		kp.Disconnect()
		t.Cleanup(kp.Connect)

		assert.False(t, s.Ready())
		_, ok := s.WalletAddress()
		assert.False(t, ok)
	})
}
