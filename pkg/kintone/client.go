// Package kintone provides a token-authenticated REST client for the record
// store. Failures are classified transient (timeout, 429, 5xx) or fatal
// (4xx validation, auth) before they reach the pipeline; the bounded retry
// itself is applied by the caller's resilience policy.
package kintone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-pipeline/internal/resilience"
)

// Field is one record cell in the API's {"value": ...} envelope.
type Field struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Record maps field codes to values.
type Record map[string]Field

// Client defines the record-store operations used by the pipeline and the
// master sync.
type Client interface {
	// CreateRecord inserts a record into the app and returns its ID.
	CreateRecord(ctx context.Context, app string, record Record) (string, error)
	// UpdateRecord replaces fields on an existing record.
	UpdateRecord(ctx context.Context, app, recordID string, record Record) error
	// ListRecords pages through every record of an app.
	ListRecords(ctx context.Context, app string, fields []string) ([]Record, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the derived https://<domain> base (for testing).
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing calls per second. The record store enforces
// per-token quotas; a burst equal to the integer part of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL string
	token   string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a record-store client for the given domain
// (e.g. "example.cybozu.com") and API token.
func NewClient(domain, token string, opts ...Option) Client {
	base := domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	c := &httpClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do executes one API call and classifies the failure mode.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "kintone: rate limit")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "kintone: marshal payload")
		}
		body = bytes.NewReader(data)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, eris.Wrap(err, "kintone: create request")
	}
	req.Header.Set("X-Cybozu-API-Token", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "kintone: request"), 0)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "kintone: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := eris.Errorf("kintone: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(respBody, 500))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	return respBody, nil
}

func (c *httpClient) CreateRecord(ctx context.Context, app string, record Record) (string, error) {
	payload := map[string]any{
		"app":    app,
		"record": record,
	}
	body, err := c.do(ctx, http.MethodPost, "/k/v1/record.json", nil, payload)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "kintone: unmarshal create response")
	}
	if result.ID == "" {
		return "", eris.New("kintone: create returned no record id")
	}
	return result.ID, nil
}

func (c *httpClient) UpdateRecord(ctx context.Context, app, recordID string, record Record) error {
	payload := map[string]any{
		"app":    app,
		"id":     recordID,
		"record": record,
	}
	_, err := c.do(ctx, http.MethodPut, "/k/v1/record.json", nil, payload)
	return err
}

// listPageSize is the API's maximum records per query.
const listPageSize = 500

func (c *httpClient) ListRecords(ctx context.Context, app string, fields []string) ([]Record, error) {
	var all []Record
	for offset := 0; ; offset += listPageSize {
		query := url.Values{"app": {app}}
		for _, f := range fields {
			query.Add("fields", f)
		}
		query.Set("query", fmt.Sprintf("limit %d offset %d", listPageSize, offset))

		body, err := c.do(ctx, http.MethodGet, "/k/v1/records.json", query, nil)
		if err != nil {
			return nil, err
		}

		var result struct {
			Records []Record `json:"records"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "kintone: unmarshal records response")
		}

		all = append(all, result.Records...)
		if len(result.Records) < listPageSize {
			return all, nil
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
