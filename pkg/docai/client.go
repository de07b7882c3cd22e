// Package docai provides a client for the document-understanding service's
// processor endpoint. It converts the service's entity list into the
// pipeline's RawExtraction and classifies failures as transient or fatal;
// the retry bound itself lives with the caller's resilience policy.
package docai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-pipeline/internal/model"
	"github.com/sells-group/invoice-pipeline/internal/resilience"
)

// Client defines the extraction operations used by the pipeline.
type Client interface {
	// Process sends document bytes to the processor and returns the raw
	// extraction. Transient failures (timeout, 429, 5xx) come back wrapped
	// as resilience.TransientError.
	Process(ctx context.Context, doc Document) (*model.RawExtraction, error)
}

// Document is one input to the processor.
type Document struct {
	SourceObjectID string
	Content        []byte
	MimeType       string // defaults to application/pdf
}

// Config addresses one deployed processor.
type Config struct {
	Endpoint    string // base URL; empty derives the regional endpoint from Location
	Project     string
	Location    string
	ProcessorID string
	Token       string
	Timeout     time.Duration
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the endpoint (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewClient creates a processor client.
func NewClient(cfg Config, opts ...Option) Client {
	base := cfg.Endpoint
	if base == "" {
		location := cfg.Location
		if location == "" {
			location = "us"
		}
		base = fmt.Sprintf("https://%s-documentai.googleapis.com", location)
	}
	c := &httpClient{
		cfg:     cfg,
		baseURL: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = 60 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type processRequest struct {
	RawDocument rawDocument `json:"rawDocument"`
}

type rawDocument struct {
	Content  string `json:"content"` // base64
	MimeType string `json:"mimeType"`
}

type processResponse struct {
	Document document `json:"document"`
}

type document struct {
	Text     string   `json:"text"`
	Entities []entity `json:"entities"`
}

type entity struct {
	Type            string          `json:"type"`
	MentionText     string          `json:"mentionText"`
	Confidence      float64         `json:"confidence"`
	NormalizedValue normalizedValue `json:"normalizedValue"`
	Properties      []entity        `json:"properties"`
}

type normalizedValue struct {
	Text string `json:"text"`
}

func (c *httpClient) Process(ctx context.Context, doc Document) (*model.RawExtraction, error) {
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	reqBody := processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(doc.Content),
			MimeType: mimeType,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "docai: marshal request")
	}

	reqURL := fmt.Sprintf("%s/v1/projects/%s/locations/%s/processors/%s:process",
		c.baseURL, c.cfg.Project, c.cfg.Location, c.cfg.ProcessorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "docai: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Client-level failures are connection problems or timeouts; both
		// are worth a retry.
		return nil, resilience.NewTransientError(eris.Wrap(err, "docai: process request"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "docai: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := eris.Errorf("docai: status %d: %s", resp.StatusCode, truncate(body, 500))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var result processResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "docai: unmarshal response")
	}

	return &model.RawExtraction{
		SourceObjectID: doc.SourceObjectID,
		Entities:       convertEntities(result.Document.Entities),
		Text:           result.Document.Text,
	}, nil
}

func convertEntities(in []entity) []model.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Entity, 0, len(in))
	for _, e := range in {
		out = append(out, model.Entity{
			Type:            e.Type,
			MentionText:     e.MentionText,
			NormalizedValue: e.NormalizedValue.Text,
			Confidence:      e.Confidence,
			Properties:      convertEntities(e.Properties),
		})
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
