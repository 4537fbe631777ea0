// Package upstream is the transport to the gamification API. Every request
// carries the JSON headers, the api-key header and the account query
// parameter derived from the caller's credentials.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/player-console/internal/domain"
)

// Client performs requests against the upstream API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new upstream client. A zero timeout leaves requests
// unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Response is a 2xx upstream response
type Response struct {
	Status int
	Body   []byte
}

// Headers returns the headers sent with every request for creds
func Headers(creds domain.Credentials) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("api-key", creds.APIKey)
	return h
}

// Do issues one request. Incomplete credentials fail with
// domain.ErrMissingCredentials before anything is sent; non-2xx responses
// return a *domain.APIError.
func (c *Client) Do(ctx context.Context, method, path string, creds domain.Credentials, body any) (*Response, error) {
	if !creds.Complete() {
		return nil, domain.ErrMissingCredentials
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("building url: %w", err)
	}
	q := u.Query()
	q.Set("account", creds.Account)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = Headers(creds)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrTransportFailure, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrTransportFailure, err)
	}

	c.logger.Debug("upstream request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// errorMessage extracts the server-provided message, preferring "message"
// over "error". Plain-text bodies are used as-is when short.
func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s := textOf(payload.Message); s != "" {
			return s
		}
		if s := textOf(payload.Error); s != "" {
			return s
		}
		return ""
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// {"error":{"message":"..."}}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Message
	}
	return ""
}

func segment(id string) string {
	return url.PathEscape(id)
}
