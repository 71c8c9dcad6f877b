package handler

import (
	"context"
	"errors"
	"net/http"

	"pharmatrace/internal/consent/hasher"
	"pharmatrace/internal/consent/service"
	dErrors "pharmatrace/pkg/domain-errors"
)

// ErrorResponse is the error envelope. Kind and the optional fields are set
// for attestation failures.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Remedy      string   `json:"remedy,omitempty"`
	Logs        []string `json:"logs,omitempty"`
}

// codeFor maps an attestation failure onto a transport code.
func codeFor(err *service.Error) dErrors.Code {
	switch err.Kind {
	case service.KindNotReady:
		if err.Reason == service.ReasonEndpointNotLoaded {
			return dErrors.CodeUnavailable
		}
		return dErrors.CodeNotReady
	case service.KindAddressDerivationExhausted:
		return dErrors.CodeAddressExhausted
	case service.KindUserRejectedSignature:
		return dErrors.CodeUserRejected
	case service.KindInsufficientFunds:
		return dErrors.CodeInsufficientFunds
	case service.KindProgramExecutionError:
		return dErrors.CodeProgramError
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.CodeTimeout
		}
		return dErrors.CodeUpstream
	}
}

func renderError(err error) (int, []byte) {
	cerr := service.Classify(err)
	code := codeFor(cerr)
	return marshal(dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:       string(code),
		Description: cerr.Error(),
		Kind:        cerr.Kind.String(),
		Remedy:      cerr.Remedy(),
		Logs:        cerr.Logs,
	})
}

// replayable reports whether a sign outcome is final for its key. Success
// and program rejections are stored; everything the user can fix by acting
// (connect, approve, fund) or that may be transient is released for retry.
func replayable(status int) bool {
	return status == http.StatusOK || status == http.StatusUnprocessableEntity
}

func kindLabel(err error) string {
	return service.KindOf(err).String()
}

func fingerprint(document string) string {
	return hasher.Hash(document).Hex()
}
