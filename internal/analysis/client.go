// Package analysis talks to the external financial-intent analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"intentdash/internal/core"
)

const analyzePath = "/api/analyze"

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls POST {baseURL}/api/analyze. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	newID      func() string
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the time used for communications the service did not timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithIDFunc overrides the id assigned when the service sends none.
func WithIDFunc(newID func() string) Option {
	return func(c *Client) { c.newID = newID }
}

// NewClient builds a client for the service at baseURL. timeout bounds each
// call end to end; its expiry surfaces as an ordinary error.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClientWithPooling(timeout),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClientWithPooling keeps connections to the analysis host alive
// between submissions.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse tolerates loosely typed fields; see core.FlexString.
type analyzeResponse struct {
	ID               core.FlexString       `json:"id"`
	Text             core.FlexString       `json:"text"`
	Timestamp        core.FlexString       `json:"timestamp"`
	FinancialIntents core.FinancialIntents `json:"financial_intents"`
	UrgencyAnalysis  core.UrgencyAnalysis  `json:"urgency_analysis"`
}

// Analyze submits text and returns the resulting Communication. The returned
// value always carries an id, the submitted text when the service echoed none,
// and a timestamp.
func (c *Client) Analyze(ctx context.Context, text string) (core.Communication, error) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return core.Communication{}, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return core.Communication{}, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Communication{}, fmt.Errorf("call analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return core.Communication{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Communication{}, fmt.Errorf("decode analyze response: %w", err)
	}

	comm := core.Communication{
		ID:               strings.TrimSpace(string(out.ID)),
		Text:             string(out.Text),
		FinancialIntents: out.FinancialIntents,
		UrgencyAnalysis:  out.UrgencyAnalysis,
	}
	if comm.ID == "" {
		comm.ID = c.newID()
	}
	if strings.TrimSpace(comm.Text) == "" {
		comm.Text = text
	}
	comm.Timestamp = c.parseTimestamp(string(out.Timestamp))
	comm.UrgencyAnalysis.Sentiment = comm.UrgencyAnalysis.Sentiment.Normalize()
	return comm, nil
}

func (c *Client) parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return c.now()
}
