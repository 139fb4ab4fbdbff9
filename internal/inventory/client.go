package inventory

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const (
	// gzipThreshold is the minimum request body size for gzip compression.
	gzipThreshold = 1024 // 1 KiB

	// maxResponseSize is the maximum decompressed response body size (10 MiB).
	maxResponseSize = 10 * 1024 * 1024

	// userAgentPrefix is the User-Agent header prefix.
	userAgentPrefix = "vpnagentd/"
)

// Client is the HTTP client for the fleet inventory service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	logger     *slog.Logger
}

// NewClient creates a Client from cfg, applying defaults and validating.
func NewClient(cfg Config, version string, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		},
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		DisableCompression: true,
	}

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
	}

	if cfg.TLSInsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled", "component", "inventory")
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    version,
		logger:     logger,
	}, nil
}

// doRequest is the core HTTP helper handling JSON marshaling, gzip
// compression of large request bodies, request execution, and response
// decoding.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.sendRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}

	if result != nil {
		var reader io.Reader = resp.Body
		if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("inventory: gzip decompress response: %w", err)
			}
			defer gr.Close()
			reader = io.LimitReader(gr, maxResponseSize)
		}
		if err := json.NewDecoder(reader).Decode(result); err != nil {
			return fmt.Errorf("inventory: decode response: %w", err)
		}
	}

	return nil
}

// sendRequest builds and executes an HTTP request with standard headers,
// optional JSON body marshaling, and gzip compression for large payloads.
func (c *Client) sendRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	var compressed bool

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("inventory: marshal request body: %w", err)
		}

		if len(data) > gzipThreshold {
			var buf bytes.Buffer
			gw := gzip.NewWriter(&buf)
			if _, err := gw.Write(data); err != nil {
				return nil, fmt.Errorf("inventory: gzip compress request: %w", err)
			}
			if err := gw.Close(); err != nil {
				return nil, fmt.Errorf("inventory: gzip close: %w", err)
			}
			bodyReader = &buf
			compressed = true
		} else {
			bodyReader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("inventory: create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgentPrefix+c.version)

	return c.httpClient.Do(req)
}
