package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	consentModel "pharmatrace/internal/consent/models"
	"pharmatrace/internal/platform/middleware"
	dErrors "pharmatrace/pkg/domain-errors"
	audit "pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/platform/audit/publisher"
	"pharmatrace/pkg/platform/httputil"
)

// AuditTrail serves the recorded audit events for one identity, oldest first.
type AuditTrail interface {
	List(ctx context.Context, identity string) ([]audit.Event, error)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	identity, err := consentModel.ParsePublicKey(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "wallet must be a base58 public key"))
		return
	}

	events, err := h.cfg.AuditTrail.List(ctx, identity.String())
	if errors.Is(err, publisher.ErrNotListable) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "the configured audit sink does not serve reads"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit trail read failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "audit trail unavailable"))
		return
	}

	resp := AuditTrailResponse{Wallet: identity.String(), Events: make([]AuditEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, AuditEventResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			Category:  string(e.Category),
			Address:   e.Address,
			Digest:    e.Digest,
			Signature: e.Signature,
			Reason:    e.Reason,
			Subject:   e.Subject,
			RequestID: e.RequestID,
			Timestamp: e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
