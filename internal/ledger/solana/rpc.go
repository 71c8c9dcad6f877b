package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"pharmatrace/pkg/platform/circuit"
)

// RPCError is a JSON-RPC error object. Preflight failures carry program logs
// in data.logs.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Logs    []string        `json:"-"`
}

func (e *RPCError) Error() string { return e.Message }

// ProgramLogs implements ports.LogCarrier.
func (e *RPCError) ProgramLogs() []string { return e.Logs }

// ErrTransport marks failures below the JSON-RPC layer: connection errors,
// non-2xx responses and undecodable bodies.
var ErrTransport = errors.New("solana rpc transport error")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// rpcClient speaks JSON-RPC 2.0 over HTTP to a primary endpoint and, while
// the primary's circuit is open, to an optional fallback.
type rpcClient struct {
	primary  string
	fallback string
	http     *http.Client
	breaker  *circuit.Breaker
	logger   *slog.Logger
	nextID   atomic.Uint64
}

func (c *rpcClient) call(ctx context.Context, method string, result any, params ...any) error {
	err := c.callEndpoint(ctx, c.primary, method, result, params...)
	if !errors.Is(err, ErrTransport) {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "rpc primary recovered", "endpoint", c.primary)
		}
		return err
	}

	useFallback, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "rpc primary circuit opened", "endpoint", c.primary, "error", err)
	}
	if !useFallback || c.fallback == "" || ctx.Err() != nil {
		return err
	}
	c.logger.DebugContext(ctx, "rpc using fallback", "method", method, "endpoint", c.fallback)
	return c.callEndpoint(ctx, c.fallback, method, result, params...)
}

func (c *rpcClient) callEndpoint(ctx context.Context, endpoint, method string, result any, params ...any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: http %d: %s", ErrTransport, method, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrTransport, method, err)
	}
	if out.Error != nil {
		out.Error.Logs = logsFromData(out.Error.Data)
		return out.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(out.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func logsFromData(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}
	var sim struct {
		Logs []string `json:"logs"`
	}
	if err := json.Unmarshal(data, &sim); err != nil {
		return nil
	}
	return sim.Logs
}
