// Package oaiembed is a typed client for the OpenAI embeddings endpoint and
// for self-hosted servers that expose the same API.
package oaiembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/stevemurr/oaiembed/types"
)

const (
	// DefaultBaseURL is the public OpenAI API host.
	DefaultBaseURL = "https://api.openai.com"

	// RequestIDHeader carries the client-generated ID of each call.
	RequestIDHeader = "X-Client-Request-Id"

	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "oaiembed/1"
)

// Client sends typed requests to an OpenAI-compatible API. A Client holds no
// mutable state and is safe for concurrent use.
type Client struct {
	token        string
	baseURL      *url.URL
	httpClient   *http.Client
	logger       *slog.Logger
	timeout      time.Duration
	organization string
	userAgent    string
}

// NewClient creates a client that authenticates with the bearer token. An
// empty token sends no Authorization header, for servers that need none.
func NewClient(token string, opts ...Option) (*Client, error) {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		token:     token,
		baseURL:   base,
		logger:    slog.Default(),
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Embeddings creates embedding vectors for the request input. A response body
// that does not match the schema yields a *types.ParseError.
func (c *Client) Embeddings(ctx context.Context, req types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	body, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return types.ParseEmbeddingResponse(body)
}

// Do sends req using the method and endpoint it declares and returns the raw
// body of a 2xx response. Any other status yields a *StatusError.
func (c *Client) Do(ctx context.Context, req types.Request) ([]byte, error) {
	var body io.Reader
	switch enc := req.BodyEncoding(); enc {
	case types.BodyJSON:
		data, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", req.Endpoint(), err)
		}
		body = bytes.NewReader(data)
	case types.BodyNone:
	default:
		return nil, fmt.Errorf("unsupported body encoding %d", enc)
	}

	u := c.baseURL.JoinPath(req.Endpoint())
	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), u.String(), body)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", "endpoint", req.Endpoint(), "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method(), req.Endpoint(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Endpoint(), err)
	}

	c.logger.Debug("request completed",
		"endpoint", req.Endpoint(),
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, resp.Status, respBody)
	}

	return respBody, nil
}
