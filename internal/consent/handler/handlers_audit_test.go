package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/consent/service"
	"pharmatrace/internal/consent/session"
	jwttoken "pharmatrace/internal/jwt_token"
	"pharmatrace/internal/ledger/memory"
	"pharmatrace/internal/platform/metrics"
	"pharmatrace/internal/wallet"
	audit "pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/platform/audit/publisher"
	auditmemory "pharmatrace/pkg/platform/audit/store/memory"
)

type AuditTrailSuite struct {
	suite.Suite
	jwt       *jwttoken.JWTService
	wallet    *wallet.Keypair
	publisher *publisher.Publisher
	router    chi.Router
}

func TestAuditTrailSuite(t *testing.T) {
	suite.Run(t, new(AuditTrailSuite))
}

func (s *AuditTrailSuite) SetupTest() {
	kp, err := wallet.FromSeed(bytes.Repeat([]byte{4}, 32))
	s.Require().NoError(err)
	s.wallet = kp

	ledger := memory.New()
	ledger.Airdrop(kp.Address(), 1_000_000_000)
	sessions := StaticSession{Wallet: kp, Program: &session.Program{ID: programID, Ledger: ledger}}

	s.publisher = publisher.NewPublisher(auditmemory.NewInMemoryStore())
	s.T().Cleanup(func() { _ = s.publisher.Close() })
	client := service.New(service.WithAuditPublisher(s.publisher))

	s.jwt = jwttoken.NewJWTService("test-signing-key", "pharmatrace", "consent-gateway")
	s.router = s.routerFor(client, sessions, s.publisher)
}

func (s *AuditTrailSuite) routerFor(svc Service, sessions SessionProvider, trail AuditTrail) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, sessions, nil, logger, metrics.New(prometheus.NewRegistry()),
		jwttoken.NewJWTServiceAdapter(s.jwt), Config{Cluster: "devnet", AuditTrail: trail})
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (s *AuditTrailSuite) bearer(subject string, scopes ...string) string {
	token, err := s.jwt.GenerateAccessToken(subject, scopes, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *AuditTrailSuite) serve(router chi.Router, method, path, authz string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func (s *AuditTrailSuite) TestTrailListsSignAndVerify() {
	wallet := s.wallet.Address().String()

	w := s.serve(s.router, http.MethodPost, "/consent/sign", s.bearer("frontdesk-1", jwttoken.ScopeConsentSign),
		SignRequest{Document: "I consent to data sharing"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	w = s.serve(s.router, http.MethodGet, "/consent/"+wallet, "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.serve(s.router, http.MethodGet, "/consent/"+wallet+"/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp AuditTrailResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(wallet, resp.Wallet)
	s.Require().Len(resp.Events, 2)

	signed := resp.Events[0]
	s.Equal(string(audit.EventConsentSigned), signed.Action)
	s.Equal(string(audit.CategoryCompliance), signed.Category)
	s.Equal("frontdesk-1", signed.Subject)
	s.NotEmpty(signed.Signature)
	s.Len(signed.Digest, 64)
	s.NotEmpty(signed.ID)

	s.Equal(string(audit.EventConsentVerified), resp.Events[1].Action)
	s.Equal(string(audit.CategoryOperations), resp.Events[1].Category)
}

func (s *AuditTrailSuite) TestEmptyTrailIsAnEmptyList() {
	w := s.serve(s.router, http.MethodGet, "/consent/"+s.wallet.Address().String()+"/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"wallet":"`+s.wallet.Address().String()+`","events":[]}`, w.Body.String())
}

func (s *AuditTrailSuite) TestAccessControl() {
	path := "/consent/" + s.wallet.Address().String() + "/audit"

	s.Run("missing token", func() {
		w := s.serve(s.router, http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("sign scope does not grant reads", func() {
		w := s.serve(s.router, http.MethodGet, path, s.bearer("frontdesk-1", jwttoken.ScopeConsentSign), nil)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *AuditTrailSuite) TestInvalidWallet() {
	w := s.serve(s.router, http.MethodGet, "/consent/not-a-key/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AuditTrailSuite) TestWriteOnlySinkIsUnavailable() {
	writeOnly := publisher.NewPublisher(appendOnlyStore{})
	router := s.routerFor(service.New(), StaticSession{Wallet: s.wallet}, writeOnly)

	w := s.serve(router, http.MethodGet, "/consent/"+s.wallet.Address().String()+"/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "does not serve reads")
}

func (s *AuditTrailSuite) TestReadFailure() {
	router := s.routerFor(service.New(), StaticSession{Wallet: s.wallet}, failingTrail{})

	w := s.serve(router, http.MethodGet, "/consent/"+s.wallet.Address().String()+"/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "audit trail unavailable")
}

func (s *AuditTrailSuite) TestRouteAbsentWithoutTrail() {
	router := s.routerFor(service.New(), StaticSession{Wallet: s.wallet}, nil)

	w := s.serve(router, http.MethodGet, "/consent/"+s.wallet.Address().String()+"/audit", s.bearer("auditor-7", jwttoken.ScopeAuditRead), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

type appendOnlyStore struct{}

func (appendOnlyStore) Append(context.Context, audit.Event) error { return nil }

type failingTrail struct{}

func (failingTrail) List(context.Context, string) ([]audit.Event, error) {
	return nil, errors.New("connection reset")
}
