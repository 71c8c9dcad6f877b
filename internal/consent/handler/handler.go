package handler

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service,SessionProvider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	consentModel "pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/session"
	"pharmatrace/internal/consent/store/idempotency"
	jwttoken "pharmatrace/internal/jwt_token"
	"pharmatrace/internal/platform/metrics"
	"pharmatrace/internal/platform/middleware"
	"pharmatrace/internal/platform/ratelimit"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/httputil"
	"pharmatrace/pkg/platform/middleware/metadata"
	"pharmatrace/pkg/platform/middleware/requesttime"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// IdempotencyKeyHeader makes a sign request safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	maxBatchSize        = 100
	maxIdempotencyKey   = 255
	reservationTTL      = 2 * time.Minute
	defaultRequestLimit = 60 * time.Second
)

// Service defines the attestation operations the gateway exposes.
type Service interface {
	SignConsent(ctx context.Context, sess session.Session, document string) (consentModel.SignResult, error)
	VerifyConsent(ctx context.Context, sess session.Session, identity consentModel.PublicKey) (consentModel.Lookup, error)
	VerifyMany(ctx context.Context, sess session.Session, identities []consentModel.PublicKey) ([]consentModel.Lookup, error)
	CheckBalance(ctx context.Context, sess session.Session) consentModel.Balance
}

// SessionProvider hands out the session for the current request. The gateway
// evaluates it per request so a disconnected wallet is seen immediately.
type SessionProvider interface {
	Current(ctx context.Context) session.Session
}

// StaticSession serves one fixed session.
type StaticSession session.Session

func (s StaticSession) Current(context.Context) session.Session { return session.Session(s) }

// Config tunes the handler.
type Config struct {
	// Cluster selects the explorer link, e.g. "devnet".
	Cluster string
	// IdempotencyTTL is how long a completed sign response is replayable.
	IdempotencyTTL time.Duration
	// RequestTimeout bounds each request, including ledger confirmation.
	RequestTimeout time.Duration
	// SignLimiter throttles POST /consent/sign per subject. Nil disables it.
	SignLimiter *ratelimit.Limiter
	// AuditTrail backs GET /consent/{wallet}/audit. Nil leaves the route out.
	AuditTrail AuditTrail
}

// Handler handles consent-related endpoints.
type Handler struct {
	logger       *slog.Logger
	consent      Service
	sessions     SessionProvider
	idempotency  idempotency.Store
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	cfg          Config
}

// New creates a new consent Handler. idem may be nil to disable
// Idempotency-Key handling.
func New(
	consent Service,
	sessions SessionProvider,
	idem idempotency.Store,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	cfg Config) *Handler {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestLimit
	}
	return &Handler{
		logger:       logger,
		consent:      consent,
		sessions:     sessions,
		idempotency:  idem,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		cfg:          cfg,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	consentRouter := chi.NewRouter()
	consentRouter.Use(middleware.Recovery(h.logger))
	consentRouter.Use(middleware.RequestID)
	consentRouter.Use(metadata.ClientMetadata)
	consentRouter.Use(requesttime.Middleware)
	consentRouter.Use(middleware.Logger(h.logger))
	consentRouter.Use(middleware.Timeout(h.cfg.RequestTimeout))
	consentRouter.Use(middleware.ContentTypeJSON)
	consentRouter.Use(middleware.LatencyMiddleware(h.metrics))

	consentRouter.Get("/consent/session", h.handleSession)
	consentRouter.Get("/consent/balance", h.handleBalance)
	consentRouter.Post("/consent/verify", h.handleVerifyMany)
	consentRouter.Get("/consent/{wallet}", h.handleVerify)
	signChain := []func(http.Handler) http.Handler{
		middleware.RequireAuth(h.jwtValidator, jwttoken.ScopeConsentSign, h.logger),
	}
	if h.cfg.SignLimiter != nil {
		signChain = append(signChain, h.cfg.SignLimiter.Middleware)
	}
	consentRouter.With(signChain...).Post("/consent/sign", h.handleSign)
	if h.cfg.AuditTrail != nil {
		consentRouter.With(middleware.RequireAuth(h.jwtValidator, jwttoken.ScopeAuditRead, h.logger)).
			Get("/consent/{wallet}/audit", h.handleAuditTrail)
	}

	r.Mount("/", consentRouter)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Current(r.Context()).State()
	resp := SessionResponse{
		Ready:           st.Ready(),
		IdentityPresent: st.IdentityPresent,
		EndpointLoaded:  st.EndpointLoaded,
	}
	if st.Ready() {
		addr := st.Identity.String()
		resp.WalletAddress = &addr
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleSign commits the document digest for the gateway wallet.
func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	subject := requestcontext.Subject(ctx)
	if subject == "" {
		// This should never happen if RequireAuth middleware is configured correctly
		h.logger.ErrorContext(ctx, "subject missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req SignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid sign consent request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document is required"))
		return
	}

	sess := h.sessions.Current(ctx)
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || h.idempotency == nil {
		status, body := h.sign(ctx, sess, req.Document)
		writeRaw(w, status, body)
		return
	}
	if len(key) > maxIdempotencyKey {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Idempotency-Key is too long"))
		return
	}

	wallet, _ := sess.WalletAddress()
	scoped := subject + ":" + wallet + ":" + key
	token, existing, err := h.idempotency.Reserve(ctx, scoped, reservationTTL)
	switch {
	case errors.Is(err, sentinel.ErrInFlight):
		h.metrics.IncrementIdempotentInFlight()
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "idempotency reserve failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "idempotency store unavailable"))
		return
	case existing != nil:
		if existing.Fingerprint != fingerprint(req.Document) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Idempotency-Key was already used with a different document"))
			return
		}
		h.metrics.IncrementIdempotentReplay()
		w.Header().Set("Idempotent-Replayed", "true")
		writeRaw(w, existing.Status, existing.Body)
		return
	}

	status, body := h.sign(ctx, sess, req.Document)

	// The reservation must settle even if the client went away.
	settleCtx := context.WithoutCancel(ctx)
	if replayable(status) {
		rec := idempotency.Record{Status: status, Body: body, Fingerprint: fingerprint(req.Document)}
		if err := h.idempotency.Complete(settleCtx, scoped, token, rec, h.cfg.IdempotencyTTL); err != nil {
			h.logger.WarnContext(ctx, "idempotency complete failed",
				"request_id", requestID,
				"error", err,
			)
		}
	} else if err := h.idempotency.Release(settleCtx, scoped, token); err != nil {
		h.logger.WarnContext(ctx, "idempotency release failed",
			"request_id", requestID,
			"error", err,
		)
	}
	writeRaw(w, status, body)
}

// sign runs SignConsent and renders the outcome as a status and JSON body.
func (h *Handler) sign(ctx context.Context, sess session.Session, document string) (int, []byte) {
	res, err := h.consent.SignConsent(ctx, sess, document)
	if err != nil {
		h.logFailure(ctx, "sign consent failed", err)
		return renderError(err)
	}
	return marshal(http.StatusOK, SignResponse{
		Signature:   res.Signature.String(),
		Address:     res.Address.Address.String(),
		Bump:        res.Address.Bump,
		Digest:      res.Digest.Hex(),
		ExplorerURL: res.Signature.ExplorerURL(h.cfg.Cluster),
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := consentModel.ParsePublicKey(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "wallet must be a base58 public key"))
		return
	}

	lookup, err := h.consent.VerifyConsent(ctx, h.sessions.Current(ctx), identity)
	if err != nil {
		h.logFailure(ctx, "verify consent failed", err)
		status, body := renderError(err)
		writeRaw(w, status, body)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLookupResponse(lookup))
}

func (h *Handler) handleVerifyMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.normalize()
	if len(req.Wallets) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "wallets is required"))
		return
	}
	if len(req.Wallets) > maxBatchSize {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "too many wallets in one request"))
		return
	}

	identities := make([]consentModel.PublicKey, len(req.Wallets))
	for i, raw := range req.Wallets {
		pk, err := consentModel.ParsePublicKey(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "wallet "+raw+" is not a base58 public key"))
			return
		}
		identities[i] = pk
	}

	lookups, err := h.consent.VerifyMany(ctx, h.sessions.Current(ctx), identities)
	if err != nil {
		h.logFailure(ctx, "batch verify failed", err)
		status, body := renderError(err)
		writeRaw(w, status, body)
		return
	}
	resp := VerifyManyResponse{Results: make([]LookupResponse, len(lookups))}
	for i, l := range lookups {
		resp.Results[i] = toLookupResponse(l)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bal := h.consent.CheckBalance(ctx, h.sessions.Current(ctx))
	resp := BalanceResponse{Known: bal.Known, Low: bal.Low}
	if bal.Known {
		lamports := bal.Lamports
		resp.Lamports = &lamports
		resp.SOL = bal.SOL()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"kind", kindLabel(err),
		"error", err.Error(),
	)
}

func marshal(status int, v any) (int, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"internal_error"}`)
	}
	return status, body
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes.TrimRight(body, "\n"))
}
