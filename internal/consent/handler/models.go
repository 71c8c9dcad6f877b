package handler

import (
	"strings"
	"time"

	consentModel "pharmatrace/internal/consent/models"
)

type SignRequest struct {
	Document string `json:"document"`
}

type SignResponse struct {
	Signature   string `json:"signature"`
	Address     string `json:"address"`
	Bump        uint8  `json:"bump"`
	Digest      string `json:"digest"`
	ExplorerURL string `json:"explorer_url"`
}

type SessionResponse struct {
	Ready           bool    `json:"ready"`
	IdentityPresent bool    `json:"identity_present"`
	EndpointLoaded  bool    `json:"endpoint_loaded"`
	WalletAddress   *string `json:"wallet_address"`
}

type VerifyRequest struct {
	Wallets []string `json:"wallets"`
}

// normalize trims surrounding whitespace from each wallet. Entries are not
// dropped so results stay aligned with the request.
func (r *VerifyRequest) normalize() {
	for i, w := range r.Wallets {
		r.Wallets[i] = strings.TrimSpace(w)
	}
}

type AttestationResponse struct {
	Owner    string `json:"owner"`
	Digest   string `json:"digest"`
	Verified bool   `json:"verified"`
}

type LookupResponse struct {
	Wallet      string               `json:"wallet"`
	Found       bool                 `json:"found"`
	Address     string               `json:"address"`
	Attestation *AttestationResponse `json:"attestation,omitempty"`
}

type VerifyManyResponse struct {
	Results []LookupResponse `json:"results"`
}

type BalanceResponse struct {
	Known    bool    `json:"known"`
	Lamports *uint64 `json:"lamports"`
	SOL      string  `json:"sol,omitempty"`
	Low      bool    `json:"low"`
}

func toLookupResponse(l consentModel.Lookup) LookupResponse {
	resp := LookupResponse{
		Wallet:  l.Identity.String(),
		Found:   l.Found(),
		Address: l.Address.Address.String(),
	}
	if att, ok := l.Attestation(); ok {
		resp.Attestation = &AttestationResponse{
			Owner:    att.Owner.String(),
			Digest:   att.Digest.Hex(),
			Verified: att.Verified,
		}
	}
	return resp
}

type AuditEventResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Address   string    `json:"address,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type AuditTrailResponse struct {
	Wallet string               `json:"wallet"`
	Events []AuditEventResponse `json:"events"`
}
