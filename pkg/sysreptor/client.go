// Package sysreptor is a small client for the parts of the SysReptor REST API used by the
// convenience operations.
package sysreptor

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrNotFound is matched by API errors carrying HTTP 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response. Body is the response text as sent by the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrNotFound) true for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	Server   string
	Token    string
	Insecure bool
	// CABundle is a PEM file added to the system roots. Ignored when Insecure is set.
	CABundle string
	// Timeout bounds each request. Zero leaves cancellation to the request context.
	Timeout time.Duration
	// HTTPClient replaces the client built from the TLS options.
	HTTPClient *http.Client
}

// Client talks to one SysReptor server.
type Client struct {
	base    *url.URL
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client.
func New(opts Options) (*Client, error) {
	if opts.Server == "" {
		return nil, errors.New("server URL is required")
	}
	base, err := url.ParseRequestURI(strings.TrimRight(opts.Server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		tlsConfig, err := buildTLSConfig(opts)
		if err != nil {
			return nil, err
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		httpClient = &http.Client{Timeout: opts.Timeout, Transport: transport}
	}

	return &Client{
		base:    base,
		baseURL: strings.TrimRight(opts.Server, "/"),
		token:   opts.Token,
		client:  httpClient,
	}, nil
}

func buildTLSConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.Insecure {
		cfg.InsecureSkipVerify = true //nolint:gosec
		return cfg, nil
	}
	if opts.CABundle == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(opts.CABundle)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", opts.CABundle)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// resolve turns an API path into a URL. Absolute URLs, as sent in pagination links, are
// only accepted on the configured server so the token never leaves it.
func (c *Client) resolve(path string) (string, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return c.baseURL + path, nil
	}
	target, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", path, err)
	}
	if !strings.EqualFold(target.Scheme, c.base.Scheme) || !strings.EqualFold(target.Host, c.base.Host) {
		return "", fmt.Errorf("refusing to follow %s: not on %s://%s", path, c.base.Scheme, c.base.Host)
	}
	return target.String(), nil
}

type page struct {
	Next    *string         `json:"next"`
	Results json.RawMessage `json:"results"`
}

// list fetches every item of a list endpoint. Both plain arrays and paginated
// {"next", "results"} envelopes are accepted.
func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	for path != "" {
		data, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
			return append(out, items...), nil
		}

		var envelope page
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		var items []T
		if len(envelope.Results) > 0 {
			if err := json.Unmarshal(envelope.Results, &items); err != nil {
				return nil, fmt.Errorf("failed to decode results: %w", err)
			}
		}
		out = append(out, items...)

		path = ""
		if envelope.Next != nil {
			path = *envelope.Next
		}
	}
	return out, nil
}
