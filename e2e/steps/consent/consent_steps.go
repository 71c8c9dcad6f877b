package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	MintToken(subject string, scopes []string) error
	ClearAccessToken()
	SetHeader(name, value string)
	Remember(name, value string)
	Recall(name string) (string, bool)
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	ctx.Step(`^I am authenticated as "([^"]*)" with scopes "([^"]*)"$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I use idempotency key "([^"]*)"$`, steps.useIdempotencyKey)
	ctx.Step(`^I note the session wallet$`, steps.noteSessionWallet)
	ctx.Step(`^I sign the consent document "([^"]*)"$`, steps.signDocument)
	ctx.Step(`^I look up consent for the session wallet$`, steps.lookupSessionWallet)
	ctx.Step(`^I verify consent for the session wallet and "([^"]*)"$`, steps.verifyMany)

	ctx.Step(`^the recorded digest should be the digest of "([^"]*)"$`, steps.digestShouldMatch)
	ctx.Step(`^the signature should match the previous one$`, steps.signatureShouldMatch)
	ctx.Step(`^(\d+) results should be returned with (\d+) found$`, steps.resultsShouldBe)
	ctx.Step(`^I read the audit trail for the session wallet$`, steps.readAuditTrail)
	ctx.Step(`^the audit trail should include "([^"]*)" by "([^"]*)"$`, steps.auditTrailShouldInclude)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) authenticateAs(ctx context.Context, subject, scopes string) error {
	var list []string
	for _, sc := range strings.Split(scopes, ",") {
		if sc = strings.TrimSpace(sc); sc != "" {
			list = append(list, sc)
		}
	}
	return s.tc.MintToken(subject, list)
}

func (s *consentSteps) notAuthenticated(ctx context.Context) error {
	s.tc.ClearAccessToken()
	return nil
}

func (s *consentSteps) useIdempotencyKey(ctx context.Context, key string) error {
	s.tc.SetHeader("Idempotency-Key", key)
	return nil
}

func (s *consentSteps) noteSessionWallet(ctx context.Context) error {
	if err := s.tc.GET("/consent/session", nil); err != nil {
		return err
	}
	v, err := s.tc.GetResponseField("wallet_address")
	if err != nil {
		return err
	}
	wallet, ok := v.(string)
	if !ok || wallet == "" {
		return fmt.Errorf("session has no wallet")
	}
	s.tc.Remember("wallet", wallet)
	return nil
}

func (s *consentSteps) signDocument(ctx context.Context, document string) error {
	if err := s.tc.POST("/consent/sign", map[string]string{"document": document}); err != nil {
		return err
	}
	if v, err := s.tc.GetResponseField("signature"); err == nil {
		if prev, ok := s.tc.Recall("signature"); ok {
			s.tc.Remember("previous_signature", prev)
		}
		s.tc.Remember("signature", fmt.Sprint(v))
	}
	return nil
}

func (s *consentSteps) lookupSessionWallet(ctx context.Context) error {
	wallet, ok := s.tc.Recall("wallet")
	if !ok {
		return fmt.Errorf("no session wallet noted")
	}
	return s.tc.GET("/consent/"+wallet, nil)
}

func (s *consentSteps) verifyMany(ctx context.Context, other string) error {
	wallet, ok := s.tc.Recall("wallet")
	if !ok {
		return fmt.Errorf("no session wallet noted")
	}
	return s.tc.POST("/consent/verify", map[string][]string{"wallets": {wallet, other}})
}

func (s *consentSteps) digestShouldMatch(ctx context.Context, document string) error {
	v, err := s.tc.GetResponseField("attestation")
	if err != nil {
		return err
	}
	att, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("attestation is not an object: %v", v)
	}
	want := sha256Hex(document)
	if got := fmt.Sprint(att["digest"]); got != want {
		return fmt.Errorf("expected digest %s, got %s", want, got)
	}
	return nil
}

func (s *consentSteps) signatureShouldMatch(ctx context.Context) error {
	cur, _ := s.tc.Recall("signature")
	prev, ok := s.tc.Recall("previous_signature")
	if !ok {
		return fmt.Errorf("no earlier signature recorded")
	}
	if cur != prev {
		return fmt.Errorf("expected replayed signature %s, got %s", prev, cur)
	}
	return nil
}

func (s *consentSteps) resultsShouldBe(ctx context.Context, total, found int) error {
	v, err := s.tc.GetResponseField("results")
	if err != nil {
		return err
	}
	results, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("results is not a list: %v", v)
	}
	if len(results) != total {
		return fmt.Errorf("expected %d results, got %d", total, len(results))
	}
	n := 0
	for _, r := range results {
		if m, ok := r.(map[string]interface{}); ok && m["found"] == true {
			n++
		}
	}
	if n != found {
		return fmt.Errorf("expected %d found, got %d", found, n)
	}
	return nil
}

func (s *consentSteps) readAuditTrail(ctx context.Context) error {
	wallet, ok := s.tc.Recall("wallet")
	if !ok {
		return fmt.Errorf("no session wallet noted")
	}
	return s.tc.GET("/consent/"+wallet+"/audit", nil)
}

func (s *consentSteps) auditTrailShouldInclude(ctx context.Context, action, subject string) error {
	v, err := s.tc.GetResponseField("events")
	if err != nil {
		return err
	}
	events, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("events is not a list: %v", v)
	}
	for _, e := range events {
		if m, ok := e.(map[string]interface{}); ok && m["action"] == action && m["subject"] == subject {
			return nil
		}
	}
	return fmt.Errorf("no %s event by %s among %d events", action, subject, len(events))
}
