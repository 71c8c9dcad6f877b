package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries one scenario's state against a running gateway.
type TestContext struct {
	BaseURL    string
	SigningKey string
	HTTPClient *http.Client

	accessToken string
	headers     map[string]string
	lastStatus  int
	lastHeader  http.Header
	lastBody    []byte
	remembered  map[string]string
}

// NewTestContext reads E2E_BASE_URL and JWT_SIGNING_KEY.
func NewTestContext() *TestContext {
	tc := &TestContext{
		BaseURL:    getenv("E2E_BASE_URL", "http://localhost:8080"),
		SigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	tc.Reset()
	return tc
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.accessToken = ""
	tc.headers = map[string]string{}
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
	tc.remembered = map[string]string{}
}

// MintToken signs a gateway access token the way the server expects it.
func (tc *TestContext) MintToken(subject string, scopes []string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    subject,
		"iss":    "pharmatrace",
		"aud":    []string{"consent-gateway"},
		"iat":    now.Unix(),
		"exp":    now.Add(10 * time.Minute).Unix(),
		"scopes": scopes,
	})
	signed, err := token.SignedString([]byte(tc.SigningKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.accessToken = signed
	return nil
}

func (tc *TestContext) GetAccessToken() string { return tc.accessToken }

func (tc *TestContext) ClearAccessToken() { tc.accessToken = "" }

// SetHeader adds a header to every following request in the scenario.
func (tc *TestContext) SetHeader(name, value string) { tc.headers[name] = value }

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range tc.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) GetLastStatusCode() int { return tc.lastStatus }

func (tc *TestContext) GetLastHeader(name string) string { return tc.lastHeader.Get(name) }

func (tc *TestContext) GetLastBody() []byte { return tc.lastBody }

// GetResponseField reads a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in response", field)
	}
	return v, nil
}

func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}

// Remember keeps a value for later steps in the same scenario.
func (tc *TestContext) Remember(name, value string) { tc.remembered[name] = value }

func (tc *TestContext) Recall(name string) (string, bool) {
	v, ok := tc.remembered[name]
	return v, ok
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
