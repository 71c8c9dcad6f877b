// Package service is the attestation client: it commits a consent document's
// digest to the ledger under the signer's derived address and reads it back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pharmatrace/internal/consent/hasher"
	"pharmatrace/internal/consent/metrics"
	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/pda"
	"pharmatrace/internal/consent/session"
	"pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

const defaultVerifyConcurrency = 8

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Client holds no per-session state; every call receives its session.
type Client struct {
	logger            *slog.Logger
	metrics           *metrics.Metrics
	auditor           AuditPublisher
	tracer            trace.Tracer
	now               func() time.Time
	verifyConcurrency int
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *Client) { c.auditor = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithVerifyConcurrency bounds the fan-out of VerifyMany.
func WithVerifyConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.verifyConcurrency = n
		}
	}
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		logger:            slog.New(slog.DiscardHandler),
		tracer:            otel.Tracer("pharmatrace/consent"),
		now:               time.Now,
		verifyConcurrency: defaultVerifyConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignConsent hashes document and commits the digest under the session
// identity's consent address. Nothing is hashed, derived or sent until the
// session gate passes. Failures are never retried.
func (c *Client) SignConsent(ctx context.Context, sess session.Session, document string) (models.SignResult, error) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "consent.SignConsent")
	defer span.End()

	st := sess.State()
	if !st.IdentityPresent {
		return models.SignResult{}, c.finish(ctx, span, "sign", start, notReady(ReasonIdentityMissing))
	}
	if !st.EndpointLoaded {
		return models.SignResult{}, c.finish(ctx, span, "sign", start, notReady(ReasonEndpointNotLoaded))
	}
	program := sess.Program
	span.SetAttributes(attribute.String("consent.wallet", st.Identity.String()))

	digest := hasher.Hash(document)
	addr, err := pda.DeriveConsentAddress(st.Identity, program.ID)
	if err != nil {
		cerr := Classify(err)
		c.emitSignFailed(ctx, st.Identity, models.DerivedAddress{}, digest, cerr)
		return models.SignResult{}, c.finish(ctx, span, "sign", start, cerr)
	}
	span.SetAttributes(attribute.String("consent.address", addr.Address.String()))
	c.logger.DebugContext(ctx, "submitting consent commit",
		"request_id", requestcontext.RequestID(ctx),
		"wallet", st.Identity.String(),
		"address", addr.Address.String(),
		"digest", digest.Hex(),
	)

	tx, err := program.Ledger.SubmitCommit(ctx, program.ID, models.CommitRequest{
		Address: addr,
		Owner:   st.Identity,
		Digest:  digest,
	}, sess.Wallet)
	if err != nil {
		cerr := Classify(err)
		c.emitSignFailed(ctx, st.Identity, addr, digest, cerr)
		return models.SignResult{}, c.finish(ctx, span, "sign", start, cerr)
	}

	c.logger.InfoContext(ctx, "consent signed",
		"request_id", requestcontext.RequestID(ctx),
		"wallet", st.Identity.String(),
		"address", addr.Address.String(),
		"signature", tx.String(),
	)
	c.emit(ctx, audit.Event{
		Action:    string(audit.EventConsentSigned),
		Identity:  st.Identity.String(),
		Address:   addr.Address.String(),
		Digest:    digest.Hex(),
		Signature: tx.String(),
	})
	_ = c.finish(ctx, span, "sign", start, nil)
	return models.SignResult{Signature: tx, Address: addr, Digest: digest}, nil
}

// VerifyConsent re-derives identity's consent address and fetches the record.
// A missing record is a NotFound lookup with a nil error.
func (c *Client) VerifyConsent(ctx context.Context, sess session.Session, identity models.PublicKey) (models.Lookup, error) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "consent.VerifyConsent",
		trace.WithAttributes(attribute.String("consent.wallet", identity.String())))
	defer span.End()

	if !sess.State().EndpointLoaded {
		return models.Lookup{}, c.finish(ctx, span, "verify", start, notReady(ReasonEndpointNotLoaded))
	}
	lookup, err := c.verify(ctx, sess.Program, identity)
	return lookup, c.finish(ctx, span, "verify", start, err)
}

func (c *Client) verify(ctx context.Context, program *session.Program, identity models.PublicKey) (models.Lookup, error) {
	addr, err := pda.DeriveConsentAddress(identity, program.ID)
	if err != nil {
		return models.Lookup{}, Classify(err)
	}

	att, err := program.Ledger.FetchAttestation(ctx, program.ID, addr.Address)
	if errors.Is(err, sentinel.ErrNotFound) {
		c.emit(ctx, audit.Event{
			Action:   string(audit.EventConsentNotFound),
			Identity: identity.String(),
			Address:  addr.Address.String(),
		})
		return models.NotFound(identity, addr), nil
	}
	if err != nil {
		return models.Lookup{}, Classify(err)
	}

	c.emit(ctx, audit.Event{
		Action:   string(audit.EventConsentVerified),
		Identity: identity.String(),
		Address:  addr.Address.String(),
		Digest:   att.Digest.Hex(),
	})
	return models.Found(identity, addr, att), nil
}

// VerifyMany looks up identities concurrently and returns results in input
// order. The first failure cancels the rest.
func (c *Client) VerifyMany(ctx context.Context, sess session.Session, identities []models.PublicKey) ([]models.Lookup, error) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "consent.VerifyMany",
		trace.WithAttributes(attribute.Int("consent.batch_size", len(identities))))
	defer span.End()

	if !sess.State().EndpointLoaded {
		return nil, c.finish(ctx, span, "verify_many", start, notReady(ReasonEndpointNotLoaded))
	}

	results := make([]models.Lookup, len(identities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.verifyConcurrency)
	for i, identity := range identities {
		g.Go(func() error {
			lookup, err := c.verify(gctx, sess.Program, identity)
			if err != nil {
				return err
			}
			results[i] = lookup
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, c.finish(ctx, span, "verify_many", start, Classify(err))
	}
	_ = c.finish(ctx, span, "verify_many", start, nil)
	return results, nil
}

// CheckBalance is advisory: it returns models.UnknownBalance instead of
// failing when the session is not ready or the read fails.
func (c *Client) CheckBalance(ctx context.Context, sess session.Session) models.Balance {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "consent.CheckBalance")
	defer span.End()

	st := sess.State()
	if !st.Ready() {
		c.metrics.Observe("balance", "unknown", c.now().Sub(start))
		return models.UnknownBalance
	}
	lamports, err := sess.Program.Ledger.GetBalance(ctx, st.Identity)
	if err != nil {
		c.logger.WarnContext(ctx, "balance read failed",
			"request_id", requestcontext.RequestID(ctx),
			"wallet", st.Identity.String(),
			"error", err,
		)
		span.RecordError(err)
		c.metrics.Observe("balance", "unknown", c.now().Sub(start))
		return models.UnknownBalance
	}

	bal := models.NewBalance(lamports)
	if bal.Low {
		c.metrics.IncrementLowBalance()
		c.logger.InfoContext(ctx, "wallet balance low",
			"wallet", st.Identity.String(),
			"sol", bal.SOL(),
		)
	}
	c.metrics.Observe("balance", "ok", c.now().Sub(start))
	return bal
}

// finish records metrics and span status for one operation and returns err.
func (c *Client) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		level := slog.LevelWarn
		if KindOf(err) == KindUnknown || KindOf(err) == KindAddressDerivationExhausted {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "consent operation failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", operation,
			"kind", outcome,
			"error", err,
		)
	}
	c.metrics.Observe(operation, outcome, c.now().Sub(start))
	return err
}

func (c *Client) emitSignFailed(ctx context.Context, identity models.PublicKey, addr models.DerivedAddress, digest models.Digest, cerr *Error) {
	e := audit.Event{
		Action:   string(audit.EventConsentSignFailed),
		Identity: identity.String(),
		Digest:   digest.Hex(),
		Reason:   cerr.Kind.String(),
	}
	if !addr.Address.IsZero() {
		e.Address = addr.Address.String()
	}
	c.emit(ctx, e)
}

// emit records an audit event. A failed audit write is logged and never fails
// the operation: a submitted transaction cannot be retracted.
func (c *Client) emit(ctx context.Context, event audit.Event) {
	if c.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Subject = requestcontext.Subject(ctx)
	event.Device = requestcontext.Device(ctx)
	if t, ok := requestcontext.RequestTime(ctx); ok {
		event.Timestamp = t
	} else {
		event.Timestamp = c.now()
	}
	if err := c.auditor.Emit(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err,
		)
	}
}
