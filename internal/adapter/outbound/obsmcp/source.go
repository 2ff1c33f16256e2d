// Package obsmcp adapts MCP observability servers to the ObservabilitySource
// port. Each source wraps one MCP server exposing a query tool (Streamable
// HTTP transport) and translates Query calls into tools/call requests.
package obsmcp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/opsgate/opsgate/internal/port/outbound"
)

const (
	// maxResponseBodySize bounds upstream responses to prevent OOM from a
	// misbehaving server.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	// sessionHeader carries the MCP session identifier.
	sessionHeader = "Mcp-Session-Id"

	protocolVersion = "2025-06-18"
)

// Source queries one MCP observability server. Safe for concurrent use; the
// MCP session is established lazily on first query.
type Source struct {
	name     string
	endpoint string
	tool     string
	client   *http.Client
	now      func() time.Time

	mu          sync.Mutex
	sessionID   string
	initialized bool
	nextID      int64
}

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) { s.client = client }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if s.client != nil {
			s.client.Timeout = d
		}
	}
}

// New creates a source named name for the MCP server at endpoint. tool is
// the MCP tool invoked for each query (e.g. "query_metrics").
func New(name, endpoint, tool string, opts ...Option) *Source {
	s := &Source{
		name:     name,
		endpoint: endpoint,
		tool:     tool,
		now:      time.Now,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend.
func (s *Source) Name() string { return s.name }

// Query runs the source's tool with the given query and timeframe.
func (s *Source) Query(ctx context.Context, query, timeframe string) (outbound.ObservabilityResult, error) {
	if err := s.ensureSession(ctx); err != nil {
		return outbound.ObservabilityResult{}, fmt.Errorf("initialize %s: %w", s.name, err)
	}

	args, err := json.Marshal(map[string]any{
		"name": s.tool,
		"arguments": map[string]any{
			"query":     query,
			"timeframe": timeframe,
		},
	})
	if err != nil {
		return outbound.ObservabilityResult{}, fmt.Errorf("marshal tool arguments: %w", err)
	}

	resp, err := s.call(ctx, "tools/call", args)
	if err != nil {
		return outbound.ObservabilityResult{}, fmt.Errorf("query %s: %w", s.name, err)
	}

	return outbound.ObservabilityResult{
		Source:      s.name,
		Data:        decodeToolResult(resp.Result),
		RetrievedAt: s.now().UTC(),
	}, nil
}

// ensureSession performs the initialize handshake once.
func (s *Source) ensureSession(ctx context.Context) error {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if initialized {
		return nil
	}

	params, err := json.Marshal(map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "opsgate",
			"version": "1.0",
		},
	})
	if err != nil {
		return err
	}
	if _, err := s.call(ctx, "initialize", params); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// call sends one JSON-RPC request and returns the decoded response.
func (s *Source) call(ctx context.Context, method string, params json.RawMessage) (*jsonrpc.Response, error) {
	s.mu.Lock()
	s.nextID++
	id, err := jsonrpc.MakeID(float64(s.nextID))
	sessionID := s.sessionID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("make request id: %w", err)
	}

	body, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		ID:     id,
		Method: method,
		Params: params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if sessionID != "" {
		httpReq.Header.Set(sessionHeader, sessionID)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post to %s: %w", s.endpoint, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", httpResp.StatusCode)
	}
	if sid := httpResp.Header.Get(sessionHeader); sid != "" {
		s.mu.Lock()
		s.sessionID = sid
		s.mu.Unlock()
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, fmt.Errorf("upstream sent %T, want response", msg)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("upstream error: %w", resp.Error)
	}
	return resp, nil
}

// decodeToolResult unwraps an MCP tool result into structured data. Text
// content holding valid JSON is decoded; anything else passes through.
func decodeToolResult(raw json.RawMessage) any {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || len(result.Content) == 0 {
		return json.RawMessage(raw)
	}

	if len(result.Content) == 1 && result.Content[0].Type == "text" {
		var structured any
		if err := json.Unmarshal([]byte(result.Content[0].Text), &structured); err == nil {
			return structured
		}
		return result.Content[0].Text
	}

	texts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		texts = append(texts, c.Text)
	}
	return texts
}

// Compile-time interface verification.
var _ outbound.ObservabilitySource = (*Source)(nil)
