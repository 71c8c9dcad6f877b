package service

import (
	"errors"
	"strings"

	"pharmatrace/internal/consent/pda"
	"pharmatrace/internal/consent/ports"
)

// Substrings recognised in untyped ledger and wallet failures. These are part
// of the contract with wallets and RPC nodes; typed errors are checked first.
const (
	userRejectedText      = "User rejected"
	insufficientFundsText = "insufficient funds"
	insufficientLamports  = "insufficient lamports"
	noPriorCreditText     = "Attempt to debit an account but found no record of a prior credit"
)

// Classify maps any failure to exactly one Kind. The order is fixed:
// user rejection, insufficient funds, program logs or a landed program
// failure, unknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	if errors.Is(err, pda.ErrAddressDerivationExhausted) {
		return &Error{Kind: KindAddressDerivationExhausted, Message: err.Error(), Err: err}
	}

	msg := err.Error()
	if errors.Is(err, ports.ErrUserRejected) || strings.Contains(msg, userRejectedText) {
		return &Error{Kind: KindUserRejectedSignature, Message: msg, Err: err}
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, insufficientFundsText) ||
		strings.Contains(lower, insufficientLamports) ||
		strings.Contains(msg, noPriorCreditText) {
		return &Error{Kind: KindInsufficientFunds, Message: msg, Err: err}
	}

	var carrier ports.LogCarrier
	if errors.As(err, &carrier) {
		if logs := carrier.ProgramLogs(); len(logs) > 0 {
			return &Error{
				Kind:    KindProgramExecutionError,
				Logs:    append([]string(nil), logs...),
				Message: msg,
				Err:     err,
			}
		}
	}
	var failure ports.ProgramFailure
	if errors.As(err, &failure) && failure.ProgramFailed() {
		return &Error{Kind: KindProgramExecutionError, Message: msg, Err: err}
	}

	return &Error{Kind: KindUnknown, Message: msg, Err: err}
}
