// Package session evaluates whether an attestation call may proceed. A Session
// is a plain value passed into every call; its state is recomputed on each
// evaluation so a wallet disconnect is visible immediately.
package session

import (
	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/ports"
)

// Program is a loaded program handle: the deployed program ID and the ledger
// endpoint that serves it.
type Program struct {
	ID     models.PublicKey
	Ledger ports.Ledger
}

// Session borrows a wallet and a program handle for the duration of one call.
// Either may be nil.
type Session struct {
	Wallet  ports.Wallet
	Program *Program
}

// State is a point-in-time readiness snapshot.
type State struct {
	IdentityPresent bool
	EndpointLoaded  bool
	Identity        models.PublicKey
}

// Ready is identityPresent AND endpointLoaded.
func (s State) Ready() bool { return s.IdentityPresent && s.EndpointLoaded }

// State evaluates the session now.
func (s Session) State() State {
	var st State
	if s.Wallet != nil {
		st.Identity, st.IdentityPresent = s.Wallet.PublicKey()
	}
	st.EndpointLoaded = s.Program != nil && s.Program.Ledger != nil
	return st
}

// Ready is shorthand for State().Ready().
func (s Session) Ready() bool { return s.State().Ready() }

// WalletAddress returns the base58 identity for display, or false when the
// session is not ready.
func (s Session) WalletAddress() (string, bool) {
	st := s.State()
	if !st.Ready() {
		return "", false
	}
	return st.Identity.String(), true
}
