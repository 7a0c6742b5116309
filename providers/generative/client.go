// Package generative talks to a legacy-style generateText endpoint whose
// response shape is not stable across deployments.
package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultVersion  = "v1beta2"
	DefaultModel    = "text-bison-001"
)

type AuthMode int

const (
	// AuthHeader sends "Authorization: Bearer <key>".
	AuthHeader AuthMode = iota
	// AuthQuery sends the key as the "key" query parameter.
	AuthQuery
)

func (m AuthMode) String() string {
	switch m {
	case AuthHeader:
		return "header"
	case AuthQuery:
		return "query"
	default:
		return "unknown"
	}
}

type Client struct {
	Endpoint string
	Version  string
	Model    string
	HTTP     *http.Client
}

func New(endpoint, version, model string) *Client {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	version = strings.Trim(strings.TrimSpace(version), "/")
	if version == "" {
		version = DefaultVersion
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		Endpoint: endpoint,
		Version:  version,
		Model:    model,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type promptBody struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Prompt          promptBody `json:"prompt"`
	Temperature     float64    `json:"temperature"`
	MaxOutputTokens int        `json:"maxOutputTokens,omitempty"`
}

var ErrMissingKey = errors.New("generative: missing api key")

// HTTPError is a non-2xx answer from the endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("generative http %d: %s", e.StatusCode, body)
}

// URL returns the generateText endpoint for the configured model. The key is
// only included for AuthQuery.
func (c *Client) URL(key string, mode AuthMode) string {
	u := fmt.Sprintf("%s/%s/models/%s:generateText", c.Endpoint, c.Version, url.PathEscape(c.Model))
	if mode == AuthQuery {
		u += "?key=" + url.QueryEscape(key)
	}
	return u
}

// Generate performs one request. Callers own retries and timeouts.
func (c *Client) Generate(ctx context.Context, key string, req Request, mode AuthMode) (Completion, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Completion{}, ErrMissingKey
	}
	b, err := json.Marshal(generateRequest{
		Prompt:          promptBody{Text: req.Prompt},
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	})
	if err != nil {
		return Completion{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(key, mode), bytes.NewReader(b))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if mode == AuthHeader {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return Completion{}, redact(err, key)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Completion{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return ParseCompletion(raw), nil
}

// keyRedactedError hides the API key in both raw and query-escaped form while
// keeping the cause reachable for errors.Is.
type keyRedactedError struct {
	msg string
	err error
}

func (e *keyRedactedError) Error() string { return e.msg }
func (e *keyRedactedError) Unwrap() error { return e.err }

func redact(err error, key string) error {
	msg := err.Error()
	out := msg
	for _, form := range []string{url.QueryEscape(key), key} {
		if form != "" {
			out = strings.ReplaceAll(out, form, "<key>")
		}
	}
	if out == msg {
		return err
	}
	return &keyRedactedError{msg: out, err: err}
}
