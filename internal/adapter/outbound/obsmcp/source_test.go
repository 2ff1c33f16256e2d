package obsmcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeMCPServer answers initialize and tools/call with canned results.
type fakeMCPServer struct {
	t          *testing.T
	toolResult string
	calls      []string
	sessionIDs []string
}

func (f *fakeMCPServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.calls = append(f.calls, req.Method)
		f.sessionIDs = append(f.sessionIDs, r.Header.Get("Mcp-Session-Id"))

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "initialize":
			w.Header().Set("Mcp-Session-Id", "sess-42")
			writeResult(w, req.ID, `{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}`)
		case "tools/call":
			writeResult(w, req.ID, f.toolResult)
		default:
			f.t.Errorf("unexpected method %q", req.Method)
		}
	}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result string) {
	resp := map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  json.RawMessage(result),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestSourceQueryDecodesStructuredText(t *testing.T) {
	server := &fakeMCPServer{
		t:          t,
		toolResult: `{"content":[{"type":"text","text":"{\"cpu_percent\":87.5,\"status\":\"degraded\"}"}]}`,
	}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	src := New("prometheus", ts.URL, "query_metrics")
	src.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	result, err := src.Query(context.Background(), "cpu usage api", "1h")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Source != "prometheus" {
		t.Errorf("Source = %q", result.Source)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data type = %T, want map", result.Data)
	}
	if data["status"] != "degraded" {
		t.Errorf("status = %v", data["status"])
	}
	if result.RetrievedAt.IsZero() {
		t.Error("RetrievedAt is zero")
	}

	// initialize must run once, then the tool call carries the session ID.
	if len(server.calls) != 2 || server.calls[0] != "initialize" || server.calls[1] != "tools/call" {
		t.Fatalf("server calls = %v", server.calls)
	}
	if server.sessionIDs[1] != "sess-42" {
		t.Errorf("tools/call session ID = %q, want sess-42", server.sessionIDs[1])
	}
}

func TestSourceSessionReused(t *testing.T) {
	server := &fakeMCPServer{
		t:          t,
		toolResult: `{"content":[{"type":"text","text":"plain text result"}]}`,
	}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	src := New("logs", ts.URL, "search_logs")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := src.Query(ctx, "error rate", "30m")
		if err != nil {
			t.Fatalf("Query() %d error = %v", i, err)
		}
		if result.Data != "plain text result" {
			t.Errorf("Data = %v", result.Data)
		}
	}

	initCount := 0
	for _, m := range server.calls {
		if m == "initialize" {
			initCount++
		}
	}
	if initCount != 1 {
		t.Errorf("initialize called %d times, want 1", initCount)
	}
}

func TestSourceUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]json.RawMessage{
			"jsonrpc": json.RawMessage(`"2.0"`),
			"id":      req.ID,
			"error":   json.RawMessage(`{"code":-32603,"message":"backend unavailable"}`),
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	src := New("traces", ts.URL, "query_traces")
	_, err := src.Query(context.Background(), "slow spans", "1h")
	if err == nil {
		t.Fatal("Query() error = nil, want upstream error")
	}
	if !strings.Contains(err.Error(), "backend unavailable") {
		t.Errorf("Query() error = %v, want wire error message surfaced", err)
	}
}

func TestSourceHTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	src := New("metrics", ts.URL, "query_metrics")
	if _, err := src.Query(context.Background(), "q", "1h"); err == nil {
		t.Error("Query() error = nil, want status error")
	}
}
