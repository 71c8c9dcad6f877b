package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the client-observable failure taxonomy. Every failure leaving
// Client is exactly one Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotReady
	KindAddressDerivationExhausted
	KindUserRejectedSignature
	KindInsufficientFunds
	KindProgramExecutionError
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not_ready"
	case KindAddressDerivationExhausted:
		return "address_derivation_exhausted"
	case KindUserRejectedSignature:
		return "user_rejected_signature"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindProgramExecutionError:
		return "program_execution_error"
	default:
		return "unknown"
	}
}

// NotReadyReason says which half of the session gate failed.
type NotReadyReason int

const (
	ReasonNone NotReadyReason = iota
	ReasonIdentityMissing
	ReasonEndpointNotLoaded
)

func (r NotReadyReason) String() string {
	switch r {
	case ReasonIdentityMissing:
		return "identity_missing"
	case ReasonEndpointNotLoaded:
		return "endpoint_not_loaded"
	default:
		return ""
	}
}

// FaucetURL is where devnet wallets are funded.
const FaucetURL = "https://faucet.solana.com"

// Error is returned by every Client operation that fails.
type Error struct {
	Kind Kind
	// Reason is set for KindNotReady.
	Reason NotReadyReason
	// Logs holds program log lines for KindProgramExecutionError.
	Logs []string
	// Message is the underlying text, verbatim for KindUnknown.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotReady:
		if e.Reason == ReasonIdentityMissing {
			return "not ready: connect a wallet first"
		}
		return "not ready: program endpoint not loaded"
	case KindAddressDerivationExhausted:
		return "no viable consent address for this identity"
	case KindUserRejectedSignature:
		return "signature rejected by the wallet user"
	case KindInsufficientFunds:
		return fmt.Sprintf("insufficient funds: add SOL to the wallet to pay for the transaction (devnet: %s)", FaucetURL)
	case KindProgramExecutionError:
		if len(e.Logs) == 0 {
			return "program execution failed: " + e.Message
		}
		return "program execution failed: " + strings.Join(e.Logs, "; ")
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind (and Reason when the target sets one), so
// callers can write errors.Is(err, service.ErrInsufficientFunds).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == ReasonNone || t.Reason == e.Reason
}

// Remedy is user-facing guidance for recoverable kinds.
func (e *Error) Remedy() string {
	switch e.Kind {
	case KindNotReady:
		if e.Reason == ReasonIdentityMissing {
			return "Connect your wallet and try again."
		}
		return "Wait for the program to load and try again."
	case KindInsufficientFunds:
		return "Fund your wallet with SOL, for example from " + FaucetURL + ", then retry."
	case KindUserRejectedSignature:
		return "Approve the transaction in your wallet to continue."
	default:
		return ""
	}
}

// Targets for errors.Is.
var (
	ErrNotReady                   = &Error{Kind: KindNotReady}
	ErrIdentityMissing            = &Error{Kind: KindNotReady, Reason: ReasonIdentityMissing}
	ErrEndpointNotLoaded          = &Error{Kind: KindNotReady, Reason: ReasonEndpointNotLoaded}
	ErrAddressDerivationExhausted = &Error{Kind: KindAddressDerivationExhausted}
	ErrUserRejectedSignature      = &Error{Kind: KindUserRejectedSignature}
	ErrInsufficientFunds          = &Error{Kind: KindInsufficientFunds}
	ErrProgramExecution           = &Error{Kind: KindProgramExecutionError}
	ErrUnknown                    = &Error{Kind: KindUnknown}
)

func notReady(reason NotReadyReason) *Error {
	return &Error{Kind: KindNotReady, Reason: reason}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
