package opsgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client is the opsgate SDK client. It calls the gateway's HTTP API.
type Client struct {
	serverAddr string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new opsgate SDK client.
// It reads configuration from OPSGATE_* environment variables by default.
// Options can be used to override the defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr: os.Getenv("OPSGATE_SERVER_ADDR"),
		apiKey:     os.Getenv("OPSGATE_API_KEY"),
		timeout:    30 * time.Second,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// HealthCheck runs a system health check. The result may come from the
// gateway's insight cache; the "cached" field in the result reports which.
func (c *Client) HealthCheck(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodPost, "/api/health-check", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// InvestigateIncident analyzes an incident description against the
// configured observability sources.
func (c *Client) InvestigateIncident(ctx context.Context, description string) (map[string]any, error) {
	body := map[string]string{"description": description}
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodPost, "/api/investigate", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MonitorAlerts returns the current alert state. Never cached.
func (c *Client) MonitorAlerts(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodGet, "/api/alerts/monitor", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeTrends analyzes a metric's trend over the given timeframe.
func (c *Client) AnalyzeTrends(ctx context.Context, metric, timeframe string) (map[string]any, error) {
	body := map[string]string{"metric": metric, "timeframe": timeframe}
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodPost, "/api/trends/analyze", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SuggestRemediation asks the gateway's inference backend for remediation
// suggestions for the described issue.
func (c *Client) SuggestRemediation(ctx context.Context, issue string) (map[string]any, error) {
	body := map[string]string{"issue": issue}
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodPost, "/api/remediation/suggest", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateIncidentReport builds an incident report, folding in any cached
// investigation for the incident.
func (c *Client) GenerateIncidentReport(ctx context.Context, incidentID, timeframe string) (map[string]any, error) {
	body := map[string]string{"incident_id": incidentID, "timeframe": timeframe}
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodPost, "/api/reports/generate", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteAction submits a remediation action for admission and execution.
// On rejection it returns a *ActionRejectedError; the action was not
// executed and left no history record. On admission the returned record
// carries the execution outcome, which may be a failure.
func (c *Client) ExecuteAction(ctx context.Context, req ActionRequest) (*ActionRecord, error) {
	var rec ActionRecord
	if err := c.doRequest(ctx, http.MethodPost, "/api/actions/execute", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insight fetches one cached insight by key. Returns (nil, nil) when the
// key is absent or expired.
func (c *Client) Insight(ctx context.Context, key string) (*Insight, error) {
	var ins Insight
	err := c.doRequest(ctx, http.MethodGet, "/api/insights/"+url.PathEscape(key), nil, &ins)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ins, nil
}

// Status reports the state of the gateway's components.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.doRequest(ctx, http.MethodGet, "/api/status", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// doRequest performs an HTTP request to the opsgate server and decodes the
// response, translating 403 and 409 into their typed errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	u := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isConnectionError(err) {
			return &ServerUnreachableError{Cause: err}
		}
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch httpResp.StatusCode {
	case http.StatusForbidden:
		var denied authzResponse
		if err := json.Unmarshal(respBody, &denied); err == nil {
			return &AuthorizationError{Category: denied.Category, Missing: denied.Missing}
		}
		return &AuthorizationError{}

	case http.StatusConflict:
		var rejected rejectionResponse
		if err := json.Unmarshal(respBody, &rejected); err == nil {
			return &ActionRejectedError{
				Kind:   rejected.Kind,
				Reason: rejected.Reason,
				Detail: rejected.Detail,
			}
		}
		return &ActionRejectedError{}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &APIError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// isConnectionError reports whether the error is a transport-level failure
// rather than a server response.
func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
